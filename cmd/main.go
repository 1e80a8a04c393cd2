package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"dominicbreuker/pollcat/cmd/serve"
	"dominicbreuker/pollcat/cmd/stdio"
	"dominicbreuker/pollcat/cmd/version"
	"dominicbreuker/pollcat/pkg/log"
)

func main() {
	cmd := &cli.Command{
		Name:  "pollcat",
		Usage: "non-blocking network connections driven by polling",
		Commands: []*cli.Command{
			stdio.GetCommand(),
			serve.GetCommand(),
			version.GetCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.ErrorMsg("Run: %s\n", err)
		os.Exit(1)
	}
}
