package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/artifact"
)

var publishCmd = &cobra.Command{
	Use:   "publish <report-id>",
	Short: "Render a report summary and write it to artifact storage",
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

		files, err := artifact.NewStore(cfg.Artifact)
		if err != nil {
			return err
		}

		path, err := artifact.NewPublisher(files, st).Publish(ctx, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("artifact published",
			zap.String("report_id", args[0]),
			zap.String("path", path),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
