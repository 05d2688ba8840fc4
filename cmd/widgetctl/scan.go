package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const scanTableHeader = "KIND\tID\tTYPE\tBASE URL\tCONFIG"

func (application *CLIApplication) scanCommand() *cobra.Command {
	var inputPath string

	command := &cobra.Command{
		Use:   "scan",
		Short: "List the widget embeds installed on an HTML page",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			page, openErr := application.openPage(inputPath, nil, zap.NewNop())
			if openErr != nil {
				return openErr
			}

			writer := tabwriter.NewWriter(command.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, scanTableHeader)
			for _, installation := range page.Installations() {
				configSource := "remote"
				if installation.Inline {
					configSource = "inline"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
					installation.Kind,
					orDash(installation.WidgetID),
					orDash(installation.WidgetType),
					orDash(installation.BaseURL),
					configSource,
				)
			}
			return writer.Flush()
		},
	}

	command.Flags().StringVar(&inputPath, flagNameInput, "", "HTML page to scan")
	_ = command.MarkFlagRequired(flagNameInput)
	return command
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
