package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/export"
)

var (
	exportProject string
	exportMonth   string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project's monthly rollup as an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		w, err := parseMonthWindow(exportMonth)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		defer f.Close() //nolint:errcheck

		if err := export.New(st).ExportRollup(ctx, exportProject, w, f); err != nil {
			return err
		}

		zap.L().Info("rollup exported",
			zap.String("project_id", exportProject),
			zap.String("month", exportMonth),
			zap.String("out", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportProject, "project", "", "project ID (required)")
	exportCmd.Flags().StringVar(&exportMonth, "month", "", "calendar month, YYYY-MM (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "rollup.xlsx", "output file")
	_ = exportCmd.MarkFlagRequired("project")
	_ = exportCmd.MarkFlagRequired("month")
	rootCmd.AddCommand(exportCmd)
}
