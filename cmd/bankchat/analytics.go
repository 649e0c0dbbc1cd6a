package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adhocore/gronx"
	"github.com/spf13/cobra"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/logger"
	"github.com/urmatovnaa/bankchat/pkg/tui"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

func newAnalyticsCmd(opts *globalOptions) *cobra.Command {
	var watch string

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the feedback summary",
		Example: `  bankchat analytics
  bankchat analytics --watch "*/15 * * * *"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch != "" && !gronx.New().IsValid(watch) {
				return fmt.Errorf("invalid cron expression %q", watch)
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			closer, err := initLogging(cfg, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			loc := loadLocale(cfg)
			out := cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := printAnalytics(ctx, client, loc, out); err != nil || watch == "" {
				return err
			}
			return watchAnalytics(ctx, watch, func() {
				if err := printAnalytics(ctx, client, loc, out); err != nil {
					logger.WarnCF("main", "Analytics refresh failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
			})
		},
	}

	cmd.Flags().StringVar(&watch, "watch", "", "cron expression to reprint on")
	return cmd
}

func printAnalytics(ctx context.Context, client *bankapi.Client, loc *i18n.Locale, out io.Writer) error {
	data, err := client.Analytics(ctx)
	if err != nil {
		return fmt.Errorf("fetching analytics: %w", err)
	}
	panel := widget.BuildAnalytics(data, loc)
	fmt.Fprintf(out, "[%s]\n%s\n", time.Now().Format(time.DateTime), tui.RenderAnalytics(panel, loc))
	return nil
}

// watchAnalytics runs fn at every tick of expr until ctx ends.
func watchAnalytics(ctx context.Context, expr string, fn func()) error {
	for {
		next, err := gronx.NextTickAfter(expr, time.Now(), false)
		if err != nil {
			return fmt.Errorf("scheduling %q: %w", expr, err)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			fn()
		}
	}
}
