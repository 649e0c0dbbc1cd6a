package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/urmatovnaa/bankchat/pkg/bankapi"
	"github.com/urmatovnaa/bankchat/pkg/config"
	"github.com/urmatovnaa/bankchat/pkg/format"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
	"github.com/urmatovnaa/bankchat/pkg/logger"
	"github.com/urmatovnaa/bankchat/pkg/widget"
)

// loadConfig reads the config and applies the --log-level flag.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// initLogging points the logger at the configured file, or at stderr. With
// screen set, stderr belongs to a full-screen UI and logs go nowhere unless a
// file is configured.
func initLogging(cfg *config.Config, screen bool) (io.Closer, error) {
	if path := cfg.LogFilePath(); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logger.Init(logger.Config{Level: cfg.Log.Level, Output: f})
		return f, nil
	}

	if screen {
		logger.Init(logger.Config{Level: cfg.Log.Level, Output: io.Discard})
		return io.NopCloser(nil), nil
	}

	pretty := cfg.Log.Pretty || term.IsTerminal(int(os.Stderr.Fd()))
	logger.Init(logger.Config{Level: cfg.Log.Level, Pretty: pretty, Output: os.Stderr})
	return io.NopCloser(nil), nil
}

func loadLocale(cfg *config.Config) *i18n.Locale {
	loc, err := i18n.Load(cfg.Widget.Locale)
	if err != nil {
		logger.WarnCF("main", "Unknown locale, using English", map[string]interface{}{
			"locale": cfg.Widget.Locale,
			"error":  err.Error(),
		})
		return i18n.MustLoad(i18n.DefaultCode)
	}
	return loc
}

func newClient(cfg *config.Config) (*bankapi.Client, error) {
	return bankapi.NewClient(cfg.Backend.BaseURL,
		bankapi.WithTimeout(cfg.RequestTimeout()),
		bankapi.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.RateBurst),
	)
}

// widgetFactory builds widgets that each own a backend client, and with it a
// backend session.
func widgetFactory(cfg *config.Config, loc *i18n.Locale, confirm widget.Confirmer) func() (*widget.Widget, error) {
	opts := widget.Options{
		Locale:          loc,
		Markdown:        format.ParseMode(cfg.Widget.Markdown),
		AuthEnabled:     cfg.Widget.AuthEnabled,
		FeedbackEnabled: cfg.Widget.FeedbackEnabled,
		WelcomeMessage:  cfg.Widget.Welcome,
		Confirm:         confirm,
	}
	return func() (*widget.Widget, error) {
		client, err := newClient(cfg)
		if err != nil {
			return nil, err
		}
		return widget.New(client, opts), nil
	}
}
