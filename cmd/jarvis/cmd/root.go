package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/m4xw311/jarvis/config"
	"github.com/m4xw311/jarvis/logging"
	"github.com/spf13/cobra"
)

var (
	globalConfigFile string
	globalLogFormat  string
	globalLogLevel   string
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "jarvis",
		Short:         "Personal assistant chat client for an Amazon Bedrock agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(
		&globalConfigFile,
		"config",
		"",
		"config file (default: ~/.jarvis/config.yaml overridden by ./.jarvis/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(&globalLogFormat, "log-format", "text", "log format: text|json")
	rootCmd.PersistentFlags().StringVar(&globalLogLevel, "log-level", "info", "log level: debug|info|warn|error")

	rootCmd.AddCommand(NewChatCmd())
	rootCmd.AddCommand(NewSetupCmd())

	return rootCmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the logger shared by the
// subcommands.
func bootstrap() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(globalConfigFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(logging.Options{Level: globalLogLevel, Format: globalLogFormat})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
