package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/pipeline"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

var (
	aggregateProject string
	aggregateMonth   string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute a project's monthly rollup",
	Long:  "Recomputes hours, labor cost, vendor grades and constraint costs for the given calendar month from the full entity history. Safe to run any number of times.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		w, err := parseMonthWindow(aggregateMonth)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rollup, err := env.Pipeline.Aggregator().Recompute(ctx, aggregateProject, w)
		if err != nil {
			return eris.Wrap(err, "recompute rollup")
		}

		zap.L().Info("rollup recomputed",
			zap.String("project_id", aggregateProject),
			zap.String("month", aggregateMonth),
			zap.Int("reports", rollup.ReportCount),
			zap.Float64("labor_cost", rollup.Labor.LaborCost),
		)
		return printJSON(rollup)
	},
}

// parseMonthWindow turns "2026-03" into that calendar month's window.
func parseMonthWindow(month string) (store.Window, error) {
	d, err := time.Parse("2006-01", month)
	if err != nil {
		return store.Window{}, eris.Wrapf(err, "parse --month %q, want YYYY-MM", month)
	}
	return pipeline.MonthWindow(d), nil
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateProject, "project", "", "project ID (required)")
	aggregateCmd.Flags().StringVar(&aggregateMonth, "month", "", "calendar month, YYYY-MM (required)")
	_ = aggregateCmd.MarkFlagRequired("project")
	_ = aggregateCmd.MarkFlagRequired("month")
	rootCmd.AddCommand(aggregateCmd)
}
