package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process <report-id>",
	Short: "Run one report through extraction, resolution and aggregation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.ProcessReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "process report")
		}

		zap.L().Info("report processed",
			zap.String("report_id", result.ReportID),
			zap.String("status", string(result.Status)),
			zap.Int("entities_created", result.EntitiesCreated),
			zap.Int("entities_flagged", result.EntitiesFlagged),
			zap.Bool("cache_hit", result.CacheHit),
		)
		return printJSON(result)
	},
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <report-id>",
	Short: "Supersede prior extractions and run the report again",
	Long:  "Bypasses the extraction cache, supersedes earlier attempts, and replays the report. Use after prompt revisions or for reports that failed on malformed output.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.ReprocessReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reprocess report")
		}
		return printJSON(result)
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <report-id>",
	Short: "Archive a published report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Pipeline.ArchiveReport(ctx, args[0]); err != nil {
			return eris.Wrap(err, "archive report")
		}
		zap.L().Info("report archived", zap.String("report_id", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(archiveCmd)
}
