// Package stdio provides the stdio command, which answers protocol requests
// read line by line from standard input.
package stdio

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"dominicbreuker/pollcat/cmd/shared"
	"dominicbreuker/pollcat/pkg/bridge"
	"dominicbreuker/pollcat/pkg/protocol"
)

// GetCommand returns the CLI command serving requests over standard I/O.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "stdio",
		Usage:       "Answer requests read line by line from stdin",
		Description: shared.GetBaseDescription() + "\nArguments are separated by tabs; \\t, \\n, \\r and \\\\ are escaped.",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, logger, err := shared.StartEngine(shared.EngineConfig(cmd))
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := shared.SetupSignalHandling(ctx)
			defer cancel()

			s := bridge.NewStdio()
			defer s.Close()

			if err := bridge.ServeLines(ctx, protocol.New(e, logger), s, logger); err != nil {
				return fmt.Errorf("serving stdio: %s", err)
			}
			return nil
		},
		Flags: shared.GetEngineFlags(),
	}
}
