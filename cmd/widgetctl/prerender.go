package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/runtime"
)

const (
	flagNameInput        = "input"
	flagNameOutput       = "output"
	flagNameFetchTimeout = "fetch-timeout"
	defaultFetchTimeout  = 10 * time.Second
)

// prerenderCommand mounts every embed of a page server-side and writes the resulting document. The
// page clock never advances, so rotating widgets are captured on their first testimonial.
func (application *CLIApplication) prerenderCommand() *cobra.Command {
	var inputPath string
	var outputPath string
	var fetchTimeout time.Duration

	command := &cobra.Command{
		Use:   "prerender",
		Short: "Render the widgets of an HTML page into the page markup",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			logger, loggerErr := application.logger(command)
			if loggerErr != nil {
				return loggerErr
			}
			defer func() {
				_ = logger.Sync()
			}()

			page, openErr := application.openPage(inputPath, &http.Client{Timeout: fetchTimeout}, logger)
			if openErr != nil {
				return openErr
			}
			defer page.Unload()

			scripts, scriptErr := page.MountScripts(command.Context())
			placeholders, legacyErr := page.ScanLegacy(command.Context())
			if mountErr := errors.Join(scriptErr, legacyErr); mountErr != nil {
				logger.Warn("widget_mount_failed", zap.Error(mountErr))
			}
			logger.Info("page_prerendered", zap.Int("scripts", len(scripts)), zap.Int("placeholders", len(placeholders)))

			rendered, renderErr := page.HTML()
			if renderErr != nil {
				return renderErr
			}
			if outputPath == "" {
				_, writeErr := fmt.Fprintln(command.OutOrStdout(), rendered)
				return writeErr
			}
			return os.WriteFile(outputPath, []byte(rendered), 0o644)
		},
	}

	command.Flags().StringVar(&inputPath, flagNameInput, "", "HTML page to prerender")
	command.Flags().StringVar(&outputPath, flagNameOutput, "", "file receiving the rendered page, stdout when empty")
	command.Flags().DurationVar(&fetchTimeout, flagNameFetchTimeout, defaultFetchTimeout, "timeout of each configuration fetch")
	_ = command.MarkFlagRequired(flagNameInput)
	return command
}

func (application *CLIApplication) openPage(inputPath string, client runtime.HTTPDoer, logger *zap.Logger) (*runtime.Page, error) {
	file, openErr := os.Open(inputPath)
	if openErr != nil {
		return nil, fmt.Errorf("open page: %w", openErr)
	}
	defer file.Close()

	return runtime.ParsePage(file, runtime.PageOptions{
		Clock:        runtime.NewManualClock(time.Now()),
		Resolver:     runtime.NewResolver(client, logger),
		Logger:       logger,
		LegacyDomain: application.baseURL(),
	})
}
