package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/labreport/internal/model"
)

func generateCmd(configPath *string) *cobra.Command {
	var (
		input  string
		outDir string
		format string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a report from a JSON file",
		Long: `Render a report in one go. The input holds the patient, the report type,
the test results and the layout options; "-" reads it from stdin. A new
patient identifier is issued for every report generated.`,
		Example: `  labreport generate --input visit.json --out reports/
  labreport generate --input - --format xlsx < visit.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reportInput, err := readReportInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, _, err := a.reportService(nil)
			if err != nil {
				return err
			}

			doc, draft, err := svc.Generate(cmd.Context(), *reportInput, format)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path := filepath.Join(outDir, doc.Filename)
			if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d page(s)\n", draft.Form.PatientID, path, doc.Pages)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Report JSON file, or - for stdin")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write the report to")
	cmd.Flags().StringVarP(&format, "format", "f", "pdf", "Output format: pdf or xlsx")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func readReportInput(stdin io.Reader, path string) (*model.ReportInput, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var input model.ReportInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	return &input, nil
}
