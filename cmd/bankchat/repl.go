package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/urmatovnaa/bankchat/pkg/tui"
)

func newReplCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat line by line (no full-screen UI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			closer, err := initLogging(cfg, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			w, err := widgetFactory(cfg, loadLocale(cfg), nil)()
			if err != nil {
				return err
			}

			rl, err := readline.NewFromConfig(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     replHistoryFile(),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			err = tui.NewREPL(w, rl, os.Stdout).Run(ctx)
			if errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return err
		},
	}
}

func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".bankchat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ""
	}
	return filepath.Join(dir, "repl_history")
}
