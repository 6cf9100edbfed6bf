package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Raise events read as JSON lines from stdin",
		Long: `Load every plugin, then read one request per line from stdin and write
one JSON report per request to stdout:

  {"kind": "player.chat", "data": {"player": "alex", "message": "hi"}}
  {"kind": "custom.thing", "data": {"n": 1}, "cancellable": true}

Stops at end of input or on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := startApp(ctx, flags, watch, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer stopApp(a)

			return a.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload plugins when their files change")
	return cmd
}
