package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestProject    string
	ingestSubmitter  string
	ingestDate       string
	ingestTranscript string
	ingestProcess    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Register a transcript as a pending report",
	Long:  "Reads the raw transcript from --transcript or stdin and creates a pending report. With --process the report runs through the full pipeline immediately.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		date, err := time.Parse("2006-01-02", ingestDate)
		if err != nil {
			return eris.Wrapf(err, "parse --date %q", ingestDate)
		}

		transcript, err := readTranscript(ingestTranscript)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r, err := env.Pipeline.Ingest(ctx, ingestProject, ingestSubmitter, date, transcript)
		if err != nil {
			return eris.Wrap(err, "ingest report")
		}

		zap.L().Info("report ingested",
			zap.String("report_id", r.ID),
			zap.String("project_id", r.ProjectID),
		)

		if ingestProcess {
			result, err := env.Pipeline.ProcessReport(ctx, r.ID)
			if err != nil {
				return eris.Wrap(err, "process report")
			}
			return printJSON(result)
		}

		return printJSON(r)
	},
}

func readTranscript(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", eris.Wrap(err, "read transcript from stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read transcript file %s", path)
	}
	return string(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	ingestCmd.Flags().StringVar(&ingestProject, "project", "", "project ID (required)")
	ingestCmd.Flags().StringVar(&ingestSubmitter, "submitter", "", "submitting foreman ID (required)")
	ingestCmd.Flags().StringVar(&ingestDate, "date", "", "report date, YYYY-MM-DD (required)")
	ingestCmd.Flags().StringVar(&ingestTranscript, "transcript", "", "transcript file path (default stdin)")
	ingestCmd.Flags().BoolVar(&ingestProcess, "process", false, "process the report immediately after ingest")
	_ = ingestCmd.MarkFlagRequired("project")
	_ = ingestCmd.MarkFlagRequired("submitter")
	_ = ingestCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(ingestCmd)
}
