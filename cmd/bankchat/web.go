package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/urmatovnaa/bankchat/pkg/channels"
	"github.com/urmatovnaa/bankchat/pkg/logger"
)

func newWebCmd(opts *globalOptions) *cobra.Command {
	var (
		host   string
		port   int
		showQR bool
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the chat widget to browsers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.WebChat.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.WebChat.Port = port
			}
			closer, err := initLogging(cfg, false)
			if err != nil {
				return err
			}
			defer closer.Close()

			loc := loadLocale(cfg)
			ch, err := channels.NewWebChatChannel(cfg.WebChat, loc, widgetFactory(cfg, loc, nil),
				channels.WithActionTimeout(cfg.RequestTimeout()))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := ch.Start(ctx); err != nil {
				return err
			}
			if showQR {
				printQR(cmd, ch.Addr())
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				logger.InfoC("main", "Shutting down web channel")
				return ch.Stop(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides webchat.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides webchat.port)")
	cmd.Flags().BoolVar(&showQR, "qr", false, "print a QR code of the page URL")
	return cmd
}

// printQR shows the page URL as a QR code for opening on a phone.
func printQR(cmd *cobra.Command, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		if h, err := os.Hostname(); err == nil {
			host = h
		}
	}
	url := fmt.Sprintf("http://%s/", net.JoinHostPort(host, port))
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, url)
	qrterminal.GenerateHalfBlock(url, qrterminal.L, out)
}
