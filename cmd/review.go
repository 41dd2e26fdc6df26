package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/resolve"
	"github.com/blueline-build/fieldreport-cli/pkg/notion"
)

var (
	reviewKind     string
	reviewID       string
	reviewDecision string
	reviewTarget   string
	reviewPage     string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the entity review queue",
	Long:  "Fuzzy matches in the 80-94 band are flagged instead of silently merged. List them, push them to the Notion queue, resolve them one by one, or sweep stale flags.",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flagged matches awaiting a decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		now := time.Now().UTC()
		persons, err := env.Store.ListFlaggedPersonHistory(ctx, now)
		if err != nil {
			return eris.Wrap(err, "list flagged person history")
		}
		vendors, err := env.Store.ListFlaggedVendorDeliveries(ctx, now)
		if err != nil {
			return eris.Wrap(err, "list flagged vendor deliveries")
		}

		return printJSON(map[string]any{
			"persons": persons,
			"vendors": vendors,
		})
	},
}

var reviewPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push flagged matches to the Notion review queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Notion == nil {
			return eris.New("notion review queue is not configured (FIELDREPORT_REVIEW_NOTION_TOKEN, FIELDREPORT_REVIEW_NOTION_REVIEW_DB)")
		}
		queue := notion.NewReviewQueue(env.Notion, cfg.Review.Notion.ReviewDB)

		now := time.Now().UTC()
		pushed := 0

		persons, err := env.Store.ListFlaggedPersonHistory(ctx, now)
		if err != nil {
			return eris.Wrap(err, "list flagged person history")
		}
		for _, h := range persons {
			candidate := ""
			if p, err := env.Store.GetPerson(ctx, h.PersonID); err != nil {
				return eris.Wrapf(err, "load person %s", h.PersonID)
			} else if p != nil {
				candidate = p.CanonicalName
			}
			if _, err := queue.Push(ctx, notion.ReviewItem{
				Kind:      notion.ReviewKindPerson,
				RecordID:  h.ID,
				ReportID:  h.ReportID,
				RawName:   h.RawName,
				Candidate: candidate,
				Score:     h.MatchScore,
				Excerpt:   h.SourceExcerpt,
			}); err != nil {
				return err
			}
			pushed++
		}

		vendors, err := env.Store.ListFlaggedVendorDeliveries(ctx, now)
		if err != nil {
			return eris.Wrap(err, "list flagged vendor deliveries")
		}
		for _, d := range vendors {
			candidate := ""
			if v, err := env.Store.GetVendor(ctx, d.VendorID); err != nil {
				return eris.Wrapf(err, "load vendor %s", d.VendorID)
			} else if v != nil {
				candidate = v.CanonicalName
			}
			if _, err := queue.Push(ctx, notion.ReviewItem{
				Kind:      notion.ReviewKindVendor,
				RecordID:  d.ID,
				ReportID:  d.ReportID,
				RawName:   d.RawName,
				Candidate: candidate,
				Score:     d.MatchScore,
				Excerpt:   d.SourceExcerpt,
			}); err != nil {
				return err
			}
			pushed++
		}

		zap.L().Info("review queue pushed", zap.Int("items", pushed))
		return nil
	},
}

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Apply a decision to one flagged match",
	Long:  "Confirm keeps the fuzzy match and learns the spelling, reject splits the record off into a new entity, mergeInto moves the whole entity into --target.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		decision, err := parseDecision(reviewDecision)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		switch reviewKind {
		case "person":
			err = env.Pipeline.Resolver().ResolvePersonReview(ctx, reviewID, decision, reviewTarget)
		case "vendor":
			err = env.Pipeline.Resolver().ResolveVendorReview(ctx, reviewID, decision, reviewTarget)
		default:
			return eris.Errorf("unknown --kind %q, want person or vendor", reviewKind)
		}
		if err != nil {
			return eris.Wrap(err, "resolve review")
		}

		if reviewPage != "" && env.Notion != nil {
			queue := notion.NewReviewQueue(env.Notion, cfg.Review.Notion.ReviewDB)
			if err := queue.MarkResolved(ctx, reviewPage, string(decision)); err != nil {
				zap.L().Warn("failed to mark notion page resolved", zap.Error(err))
			}
		}

		zap.L().Info("review resolved",
			zap.String("kind", reviewKind),
			zap.String("record_id", reviewID),
			zap.String("decision", string(decision)),
		)
		return nil
	},
}

var reviewSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Auto-confirm flags older than the configured window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cutoff, enabled := autoConfirmCutoff(cfg.Review.AutoConfirmDays, time.Now().UTC())
		if !enabled {
			zap.L().Info("auto-confirm disabled, flagged records stay pending",
				zap.Int("auto_confirm_days", cfg.Review.AutoConfirmDays),
			)
			return nil
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Resolver().AutoConfirmSweep(ctx, cutoff)
		if err != nil {
			return eris.Wrap(err, "auto-confirm sweep")
		}

		zap.L().Info("sweep complete",
			zap.Int("persons_confirmed", result.PersonsConfirmed),
			zap.Int("vendors_confirmed", result.VendorsConfirmed),
			zap.Int("failures", result.Failures),
		)
		return printJSON(result)
	},
}

// autoConfirmCutoff derives the sweep cutoff from review.auto_confirm_days.
// Zero (or negative) days means flags stay pending forever and the sweep is
// a no-op.
func autoConfirmCutoff(days int, now time.Time) (time.Time, bool) {
	if days <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -days), true
}

func parseDecision(s string) (resolve.Decision, error) {
	switch resolve.Decision(s) {
	case resolve.DecisionConfirm, resolve.DecisionReject, resolve.DecisionMergeInto:
		return resolve.Decision(s), nil
	default:
		return "", eris.Errorf("unknown --decision %q, want confirm, reject or mergeInto", s)
	}
}

func init() {
	reviewResolveCmd.Flags().StringVar(&reviewKind, "kind", "person", "record kind: person or vendor")
	reviewResolveCmd.Flags().StringVar(&reviewID, "id", "", "history or delivery record ID (required)")
	reviewResolveCmd.Flags().StringVar(&reviewDecision, "decision", "", "confirm, reject or mergeInto (required)")
	reviewResolveCmd.Flags().StringVar(&reviewTarget, "target", "", "target entity ID for mergeInto")
	reviewResolveCmd.Flags().StringVar(&reviewPage, "page", "", "Notion page to mark resolved")
	_ = reviewResolveCmd.MarkFlagRequired("id")
	_ = reviewResolveCmd.MarkFlagRequired("decision")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewPushCmd)
	reviewCmd.AddCommand(reviewResolveCmd)
	reviewCmd.AddCommand(reviewSweepCmd)
	rootCmd.AddCommand(reviewCmd)
}
