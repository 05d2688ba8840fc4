package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/proofflow/internal/logging"
)

const (
	commandUseName               = "widgetctl"
	commandShortDescription      = "Generate, prerender and inspect ProofFlow widget embeds"
	flagNameBaseURL              = "base-url"
	flagNameLogLevel             = "log-level"
	flagUsageBaseURL             = "public URL of the ProofFlow server"
	flagUsageLogLevel            = "log level for diagnostics written to stderr"
	defaultLogLevel              = "warn"
	commandInitializationFailure = "failed to configure command"
)

// CLIApplication holds the shared configuration of every widgetctl subcommand.
type CLIApplication struct {
	configurationLoader *viper.Viper
	loggerFactory       func(level string, output io.Writer) (*zap.Logger, error)
}

// NewCLIApplication creates a CLIApplication reading PROOFFLOW_* environment variables.
func NewCLIApplication() *CLIApplication {
	configurationLoader := viper.New()
	configurationLoader.SetEnvPrefix("proofflow")
	configurationLoader.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	configurationLoader.AutomaticEnv()
	configurationLoader.SetDefault(flagNameLogLevel, defaultLogLevel)
	return &CLIApplication{
		configurationLoader: configurationLoader,
		loggerFactory:       newStderrLogger,
	}
}

// Command builds the root command with its subcommands.
func (application *CLIApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:           commandUseName,
		Short:         commandShortDescription,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	persistentFlags := rootCommand.PersistentFlags()
	persistentFlags.String(flagNameBaseURL, "", flagUsageBaseURL)
	persistentFlags.String(flagNameLogLevel, defaultLogLevel, flagUsageLogLevel)
	for _, flagName := range []string{flagNameBaseURL, flagNameLogLevel} {
		if bindErr := application.configurationLoader.BindPFlag(flagName, persistentFlags.Lookup(flagName)); bindErr != nil {
			return nil, bindErr
		}
	}

	rootCommand.AddCommand(
		application.embedCommand(),
		application.prerenderCommand(),
		application.scanCommand(),
	)
	return rootCommand, nil
}

func (application *CLIApplication) baseURL() string {
	return strings.TrimRight(strings.TrimSpace(application.configurationLoader.GetString(flagNameBaseURL)), "/")
}

func (application *CLIApplication) logger(command *cobra.Command) (*zap.Logger, error) {
	return application.loggerFactory(application.configurationLoader.GetString(flagNameLogLevel), command.ErrOrStderr())
}

func newStderrLogger(level string, output io.Writer) (*zap.Logger, error) {
	return logging.New(logging.Config{Level: level, Format: logging.FormatConsole, Output: output})
}

func main() {
	application := NewCLIApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}
	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
