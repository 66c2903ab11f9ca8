package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/enori/stock-skills/internal/models"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		input  string
		save   bool
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [portfolio]",
		Short: "Run the risk pipeline and print the report as JSON",
		Long: `Analyze a stored portfolio by name, or a complete analysis request read
from --input (use "-" for stdin). The report is written to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (input == "") {
				return fmt.Errorf("give either a portfolio name or --input")
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			var report *models.RiskReport
			if input != "" {
				req, err := readRequest(input)
				if err != nil {
					return err
				}
				report, err = a.RiskService.Analyze(ctx, *req)
				if err != nil {
					return err
				}
				if save {
					if err := a.Reports.SaveReport(ctx, report); err != nil {
						return err
					}
				}
			} else {
				report, err = a.Analyze(ctx, args[0], save)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "analysis request JSON file, or - for stdin")
	cmd.Flags().BoolVar(&save, "save", false, "persist the report under the data directory")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "indent JSON output")
	return cmd
}

func readRequest(path string) (*models.AnalysisRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	var req models.AnalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}
