// bankchat - banking assistant chat widget
//
// Subcommands:
//
//	web        serve the widget to browsers
//	tui        run the widget in the terminal
//	repl       line-oriented chat for plain terminals
//	analytics  print the feedback summary
//	version    print the build version
//
// Environment variables:
//
//	BANKCHAT_CONFIG_JSON  - Full config JSON (alternative to config file)
//	BANKCHAT_*            - Per-field overrides, see pkg/config
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/urmatovnaa/bankchat/pkg/logger"
)

var version = "dev"

type globalOptions struct {
	configPath string
	logLevel   string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "bankchat",
		Short:         "Banking assistant chat widget",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnvFile(opts.envFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "config file (.json, .yaml or .yml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error, off)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newWebCmd(opts),
		newTUICmd(opts),
		newReplCmd(opts),
		newAnalyticsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "bankchat", version)
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".bankchat", "config.yaml")
}

// loadEnvFile loads a dotenv file when present. Variables already set in the
// environment win.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		logger.WarnCF("main", "Failed to load env file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
}
