package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

var (
	batchProject string
	batchStatus  string
	batchLimit   int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process pending reports concurrently",
	Long:  "Lists reports matching --status (pending_analysis by default, failed reports with --status failed) and processes them with bounded parallelism. One bad transcript never sinks the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		reports, err := env.Store.ListReports(ctx, store.ReportFilter{
			ProjectID: batchProject,
			Status:    model.ReportStatus(batchStatus),
			Limit:     batchLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list reports")
		}
		if len(reports) == 0 {
			zap.L().Info("no reports to process",
				zap.String("status", batchStatus),
			)
			return nil
		}

		ids := make([]string, len(reports))
		for i, r := range reports {
			ids[i] = r.ID
		}

		zap.L().Info("processing batch",
			zap.Int("reports", len(ids)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentReports),
		)

		results, err := env.Pipeline.ProcessBatch(ctx, ids)
		if err != nil {
			return eris.Wrap(err, "batch processing")
		}

		var published, failed int
		for _, res := range results {
			switch res.Status {
			case model.ReportStatusPublished:
				published++
			case model.ReportStatusFailed:
				failed++
			}
		}
		zap.L().Info("batch complete",
			zap.Int("published", published),
			zap.Int("failed", failed),
		)
		return printJSON(results)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchProject, "project", "", "restrict to one project")
	batchCmd.Flags().StringVar(&batchStatus, "status", string(model.ReportStatusPending), "report status to pick up")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of reports to process")
	rootCmd.AddCommand(batchCmd)
}
