package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// ReviewKind identifies which registry a flagged record belongs to.
type ReviewKind string

const (
	ReviewKindPerson ReviewKind = "person"
	ReviewKindVendor ReviewKind = "vendor"
)

// Review queue statuses. Pages start Pending and move to Resolved once a
// decision has been applied locally.
const (
	ReviewStatusPending  = "Pending"
	ReviewStatusResolved = "Resolved"
)

// ReviewItem is one flagged fuzzy match awaiting a human decision. RecordID
// is the local history or delivery row id, which is what the resolve command
// needs to apply the decision.
type ReviewItem struct {
	PageID    string
	Kind      ReviewKind
	RecordID  string
	ReportID  string
	RawName   string
	Candidate string
	Score     int
	Excerpt   string
}

// ReviewQueue publishes flagged fuzzy matches to a Notion database so the
// office can work the queue without touching the CLI.
type ReviewQueue struct {
	client Client
	dbID   string
}

// NewReviewQueue creates a ReviewQueue backed by the given database.
func NewReviewQueue(client Client, dbID string) *ReviewQueue {
	return &ReviewQueue{client: client, dbID: dbID}
}

// Push creates a Pending page for a flagged match and returns its page id.
func (q *ReviewQueue) Push(ctx context.Context, item ReviewItem) (string, error) {
	if item.RecordID == "" {
		return "", eris.New("notion: review item has no record id")
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(q.dbID),
		},
		Properties: buildReviewProperties(item),
	}

	page, err := q.client.CreatePage(ctx, req)
	if err != nil {
		return "", eris.Wrapf(err, "notion: push review item %s", item.RecordID)
	}
	return string(page.ID), nil
}

// ListPending fetches every page still marked Pending.
func (q *ReviewQueue) ListPending(ctx context.Context) ([]ReviewItem, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: ReviewStatusPending,
			},
		},
	}
	pages, err := QueryAll(ctx, q.client, q.dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "notion: list pending reviews")
	}

	items := make([]ReviewItem, 0, len(pages))
	for _, p := range pages {
		items = append(items, parseReviewPage(&p))
	}
	return items, nil
}

// MarkResolved flips a page to Resolved and records the decision that was
// applied ("confirm", "reject" or "mergeInto").
func (q *ReviewQueue) MarkResolved(ctx context.Context, pageID, decision string) error {
	_, err := q.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{
					Name: ReviewStatusResolved,
				},
			},
			"Decision": notionapi.SelectProperty{
				Select: notionapi.Option{
					Name: decision,
				},
			},
		},
	})
	if err != nil {
		return eris.Wrapf(err, "notion: mark review page %s resolved", pageID)
	}
	return nil
}

// buildReviewProperties maps a ReviewItem onto the queue database schema.
// The raw name is the title so the queue reads naturally in Notion.
func buildReviewProperties(item ReviewItem) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: item.RawName}},
			},
		},
		"Kind": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(item.Kind),
			},
		},
		"Record ID": richText(item.RecordID),
		"Report ID": richText(item.ReportID),
		"Candidate": richText(item.Candidate),
		"Score": notionapi.NumberProperty{
			Number: float64(item.Score),
		},
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{
				Name: ReviewStatusPending,
			},
		},
	}
	if item.Excerpt != "" {
		props["Excerpt"] = richText(item.Excerpt)
	}
	return props
}

func parseReviewPage(p *notionapi.Page) ReviewItem {
	item := ReviewItem{PageID: string(p.ID)}

	if prop, ok := p.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			item.RawName = plainText(tp.Title)
		}
	}
	if prop, ok := p.Properties["Kind"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			item.Kind = ReviewKind(sp.Select.Name)
		}
	}
	if prop, ok := p.Properties["Record ID"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			item.RecordID = plainText(rtp.RichText)
		}
	}
	if prop, ok := p.Properties["Report ID"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			item.ReportID = plainText(rtp.RichText)
		}
	}
	if prop, ok := p.Properties["Candidate"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			item.Candidate = plainText(rtp.RichText)
		}
	}
	if prop, ok := p.Properties["Score"]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok {
			item.Score = int(np.Number)
		}
	}
	if prop, ok := p.Properties["Excerpt"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			item.Excerpt = plainText(rtp.RichText)
		}
	}
	return item
}

func richText(v string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
		},
	}
}

func plainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}
