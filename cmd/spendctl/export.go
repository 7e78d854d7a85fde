package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"spendsight/internal/export"
)

func exportCmd(a *app) *cobra.Command {
	var (
		target string
		sheet  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the compliance report to Google Sheets or as text",
		Long: `Build the compliance report from the current expenses and anomalies and
write it out. --to sheets replaces the contents of the report sheet in
$GOOGLE_SPREADSHEET_ID; --to text prints the plain-text report (or writes it
to --output).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target == "" {
				target = "text"
				if a.cfg.GoogleSpreadsheetID != "" {
					target = "sheets"
				}
			}

			var w export.ReportWriter
			switch target {
			case "sheets":
				if sheet == "" {
					sheet = a.cfg.GoogleReportSheet
				}
				sw, err := export.NewSheetsWriter(cmd.Context(), export.SheetsConfig{
					SpreadsheetID:      a.cfg.GoogleSpreadsheetID,
					SheetName:          sheet,
					ServiceAccountJSON: a.cfg.GoogleServiceAccountJSON,
					ServiceAccountFile: a.cfg.GoogleServiceAccountFile,
				}, a.logger)
				if err != nil {
					return err
				}
				w = sw
			case "text":
				tw := &export.TextWriter{W: cmd.OutOrStdout()}
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					tw = &export.TextWriter{W: f, Name: output}
				}
				w = tw
			default:
				return fmt.Errorf("invalid export target %q: must be sheets or text", target)
			}

			report, err := a.loadReport(cmd)
			if err != nil {
				return err
			}
			ref, err := w.WriteReport(cmd.Context(), report)
			if err != nil {
				return err
			}
			if target != "text" || output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", ref)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "sheets or text (default sheets when $GOOGLE_SPREADSHEET_ID is set)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (default $GOOGLE_REPORT_SHEET)")
	cmd.Flags().StringVar(&output, "output", "", "write the text report to this file")
	return cmd
}
