package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/urmatovnaa/bankchat/pkg/tui"
)

func newTUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the chat widget full screen in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			closer, err := initLogging(cfg, true)
			if err != nil {
				return err
			}
			defer closer.Close()

			// Clear confirmation comes from the app's own modal.
			w, err := widgetFactory(cfg, loadLocale(cfg), nil)()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tui.New(w).Run(ctx)
		},
	}
}
