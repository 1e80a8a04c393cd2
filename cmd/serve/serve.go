// Package serve provides the serve command, which answers protocol requests
// over HTTP.
package serve

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/urfave/cli/v3"

	"dominicbreuker/pollcat/cmd/shared"
	"dominicbreuker/pollcat/pkg/bridge"
	"dominicbreuker/pollcat/pkg/crypto"
	"dominicbreuker/pollcat/pkg/protocol"
)

const categoryServe = "serve"

const listenFlag = "listen"
const maxRequestsFlag = "max-requests"
const tlsFlag = "tls"

// GetCommand returns the CLI command serving requests over HTTP.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Answer requests over HTTP: POST /v1/{op} with {\"args\": [...]}",
		Description: shared.GetBaseDescription(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			addr, err := shared.ParseListenAddr(cmd.String(listenFlag))
			if err != nil {
				return fmt.Errorf("parsing listen address: %s", err)
			}

			e, logger, err := shared.StartEngine(shared.EngineConfig(cmd))
			if err != nil {
				return err
			}
			defer e.Close()

			nl, err := listen(addr, cmd.Bool(tlsFlag))
			if err != nil {
				return err
			}

			ctx, cancel := shared.SetupSignalHandling(ctx)
			defer cancel()

			s := bridge.NewServer(protocol.New(e, logger), cmd.Int(maxRequestsFlag), logger)
			if err := s.Serve(ctx, nl); err != nil {
				return fmt.Errorf("serving: %s", err)
			}
			return nil
		},
		Flags: getFlags(),
	}
}

func listen(addr string, useTLS bool) (net.Listener, error) {
	nl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %s", addr, err)
	}
	if !useTLS {
		return nl, nil
	}

	cfg, err := crypto.ServerConfig()
	if err != nil {
		nl.Close()
		return nil, fmt.Errorf("crypto.ServerConfig(): %s", err)
	}
	return tls.NewListener(nl, cfg), nil
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     listenFlag,
			Aliases:  []string{"l"},
			Usage:    "Address to listen on, format: host:port (empty host or * for all interfaces)",
			Category: categoryServe,
			Value:    "127.0.0.1:8080",
			Required: false,
		},
		&cli.IntFlag{
			Name:     maxRequestsFlag,
			Usage:    "Maximum number of requests handled at once, 503 beyond",
			Category: categoryServe,
			Value:    bridge.DefaultMaxRequests,
			Required: false,
		},
		&cli.BoolFlag{
			Name:     tlsFlag,
			Usage:    "Serve HTTPS with a self-signed certificate",
			Category: categoryServe,
			Value:    false,
			Required: false,
		},
	}

	return append(flags, shared.GetEngineFlags()...)
}
