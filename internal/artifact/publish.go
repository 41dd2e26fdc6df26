package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

// Publisher renders a processed report into a markdown summary and writes it
// to artifact storage.
type Publisher struct {
	files Store
	db    store.Store
}

// NewPublisher creates a Publisher.
func NewPublisher(files Store, db store.Store) *Publisher {
	return &Publisher{files: files, db: db}
}

// Publish renders the report summary and stores it, returning the artifact
// path. Rendering reads only committed records, so republishing after a
// reprocess always reflects the latest extraction.
func (p *Publisher) Publish(ctx context.Context, reportID string) (string, error) {
	r, err := p.db.GetReport(ctx, reportID)
	if err != nil {
		return "", eris.Wrapf(err, "publish: load report %s", reportID)
	}
	if r == nil {
		return "", eris.Errorf("publish: report %s not found", reportID)
	}

	history, err := p.db.ListPersonHistoryByReport(ctx, reportID)
	if err != nil {
		return "", eris.Wrap(err, "publish: list person history")
	}
	logs, err := p.db.ListWorkLogs(ctx, reportID)
	if err != nil {
		return "", eris.Wrap(err, "publish: list work logs")
	}
	constraints, err := p.db.ListConstraints(ctx, reportID)
	if err != nil {
		return "", eris.Wrap(err, "publish: list constraints")
	}
	deliveries, err := p.db.ListDeliveriesByReport(ctx, reportID)
	if err != nil {
		return "", eris.Wrap(err, "publish: list deliveries")
	}

	doc, err := p.render(ctx, r, history, logs, constraints, deliveries)
	if err != nil {
		return "", err
	}

	path := r.ArtifactPath("report.md")
	if err := p.files.Put(ctx, path, strings.NewReader(doc)); err != nil {
		return "", err
	}
	zap.L().Info("report artifact published",
		zap.String("report_id", reportID),
		zap.String("path", path),
	)
	return path, nil
}

func (p *Publisher) render(ctx context.Context, r *model.Report, history []model.PersonHistory, logs []model.WorkLogEntry, constraints []model.ConstraintRecord, deliveries []model.VendorDelivery) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# Daily Report %s\n\n", r.ID)
	fmt.Fprintf(&b, "- Project: %s\n", r.ProjectID)
	fmt.Fprintf(&b, "- Date: %s\n", r.ReportDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Submitter: %s\n", r.SubmitterID)
	fmt.Fprintf(&b, "- Extraction version: %d\n\n", r.ExtractionVersion)

	if len(history) > 0 {
		b.WriteString("## Personnel\n\n")
		b.WriteString("| Name | Hours | OT | Team | Review |\n|---|---|---|---|---|\n")
		for _, h := range history {
			name := h.RawName
			if person, err := p.db.GetPerson(ctx, h.PersonID); err != nil {
				return "", eris.Wrapf(err, "publish: load person %s", h.PersonID)
			} else if person != nil {
				name = person.CanonicalName
			}
			fmt.Fprintf(&b, "| %s | %.1f | %.1f | %s | %s |\n",
				name, h.HoursWorked, h.OvertimeHours, h.TeamAssignment, reviewMark(h.NeedsReview))
		}
		b.WriteString("\n")
	}

	if len(logs) > 0 {
		b.WriteString("## Work\n\n")
		for _, wl := range logs {
			line := wl.Description
			if wl.Team != "" {
				line = fmt.Sprintf("%s — %s", wl.Team, line)
			}
			if wl.Level != "" {
				line = fmt.Sprintf("%s (level %s)", line, wl.Level)
			}
			fmt.Fprintf(&b, "- %s, %.1fh, %d workers\n", line, wl.HoursWorked, len(wl.PersonnelIDs))
		}
		b.WriteString("\n")
	}

	if len(constraints) > 0 {
		b.WriteString("## Constraints\n\n")
		b.WriteString("| Category | Severity | Status | Cost | Review |\n|---|---|---|---|---|\n")
		for _, c := range constraints {
			fmt.Fprintf(&b, "| %s | %s | %s | $%.2f | %s |\n",
				c.Category, c.Severity, c.Status, c.CostImpact, reviewMark(c.NeedsReview))
		}
		b.WriteString("\n")
	}

	if len(deliveries) > 0 {
		b.WriteString("## Deliveries\n\n")
		b.WriteString("| Vendor | Materials | On time | Cost impact | Review |\n|---|---|---|---|---|\n")
		for _, d := range deliveries {
			name := d.RawName
			if vendor, err := p.db.GetVendor(ctx, d.VendorID); err != nil {
				return "", eris.Wrapf(err, "publish: load vendor %s", d.VendorID)
			} else if vendor != nil {
				name = vendor.CanonicalName
			}
			onTime := "yes"
			if !d.OnTime {
				onTime = "no"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | $%.2f | %s |\n",
				name, d.Materials, onTime, d.CostImpact, reviewMark(d.NeedsReview))
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

func reviewMark(needsReview bool) string {
	if needsReview {
		return "needs review"
	}
	return ""
}
