package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	flagNameConfig   = "config"
	flagNameFormat   = "format"
	flagNameWidgetID = "widget-id"
)

var errMissingBaseURL = errors.New("missing --base-url")

func (application *CLIApplication) embedCommand() *cobra.Command {
	var configPath string
	var rawFormat string
	var widgetID string

	command := &cobra.Command{
		Use:   "embed",
		Short: "Print the embed snippet for a widget described in YAML",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			format, formatErr := embed.ParseFormat(rawFormat)
			if formatErr != nil {
				return formatErr
			}
			baseURL := application.baseURL()
			if baseURL == "" {
				return errMissingBaseURL
			}

			config, loadErr := loadWidgetConfigFile(configPath)
			if loadErr != nil {
				return loadErr
			}
			if strings.TrimSpace(widgetID) == "" {
				widgetID = config.ID
			} else {
				config.ID = strings.TrimSpace(widgetID)
			}

			snippet, generateErr := embed.Generate(format, config, baseURL, widgetID)
			if generateErr != nil {
				return generateErr
			}
			_, writeErr := fmt.Fprintln(command.OutOrStdout(), snippet)
			return writeErr
		},
	}

	command.Flags().StringVar(&configPath, flagNameConfig, "", "YAML file holding the widget configuration")
	command.Flags().StringVar(&rawFormat, flagNameFormat, string(embed.FormatScript), "snippet format (script or legacy)")
	command.Flags().StringVar(&widgetID, flagNameWidgetID, "", "widget identifier, replaces the id in the config file")
	_ = command.MarkFlagRequired(flagNameConfig)
	return command
}

// loadWidgetConfigFile decodes a YAML widget configuration and checks it against the config schema.
func loadWidgetConfigFile(path string) (widget.Config, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return widget.Config{}, fmt.Errorf("open config: %w", openErr)
	}
	defer file.Close()

	var config widget.Config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if decodeErr := decoder.Decode(&config); decodeErr != nil {
		return widget.Config{}, fmt.Errorf("%w: parse %s: %v", widget.ErrInvalidConfig, path, decodeErr)
	}
	if validateErr := widget.NewSchemaValidator().ValidateValue(widget.SchemaConfig, config); validateErr != nil {
		return widget.Config{}, validateErr
	}
	return config, nil
}
