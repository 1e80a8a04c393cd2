// Package version provides the version command.
package version

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set at build time with -ldflags "-X ...version.Version=...".
var Version = "unknown"

// GetCommand returns the CLI command printing the program version.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Program version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Fprintln(writer(cmd), Version)
			return nil
		},
		Flags: []cli.Flag{},
	}
}

func writer(cmd *cli.Command) io.Writer {
	if cmd.Writer != nil {
		return cmd.Writer
	}
	return os.Stdout
}
