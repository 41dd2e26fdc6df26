package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/blueline-build/fieldreport-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status <report-id>",
	Short: "Show a report's state and extraction attempts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		r, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "load report")
		}
		if r == nil {
			return eris.Errorf("report %s not found", args[0])
		}

		attempts, err := st.ListAttempts(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "list attempts")
		}

		return printJSON(struct {
			Report   *model.Report             `json:"report"`
			Attempts []model.ExtractionAttempt `json:"attempts"`
		}{r, attempts})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return st.Migrate(ctx)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
}
