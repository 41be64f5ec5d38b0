// accelinfo inspects the accelerator stack visible to this process:
// it enumerates devices and can run a small end-to-end probe of the
// context, memory and module layers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "accelinfo",
		Usage: "Inspect CUDA devices and probe the accel runtime",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			devicesCmd(),
			probeCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
