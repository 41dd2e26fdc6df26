package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReviewQueue_Push_BuildsPendingPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		if req.Parent.DatabaseID != notionapi.DatabaseID("db-review") {
			return false
		}
		tp, ok := req.Properties["Name"].(notionapi.TitleProperty)
		if !ok || len(tp.Title) != 1 || tp.Title[0].Text.Content != "Owen Glasburn" {
			return false
		}
		sp, ok := req.Properties["Kind"].(notionapi.SelectProperty)
		if !ok || sp.Select.Name != "person" {
			return false
		}
		np, ok := req.Properties["Score"].(notionapi.NumberProperty)
		if !ok || np.Number != 88 {
			return false
		}
		st, ok := req.Properties["Status"].(notionapi.StatusProperty)
		return ok && st.Status.Name == ReviewStatusPending
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	q := NewReviewQueue(mc, "db-review")
	pageID, err := q.Push(ctx, ReviewItem{
		Kind:      ReviewKindPerson,
		RecordID:  "hist-1",
		ReportID:  "r-1",
		RawName:   "Owen Glasburn",
		Candidate: "Owen Glassburn",
		Score:     88,
		Excerpt:   "Owen Glasburn ran the concrete crew",
	})
	require.NoError(t, err)
	assert.Equal(t, "page-1", pageID)
	mc.AssertExpectations(t)
}

func TestReviewQueue_Push_RequiresRecordID(t *testing.T) {
	q := NewReviewQueue(new(MockClient), "db-review")
	_, err := q.Push(context.Background(), ReviewItem{Kind: ReviewKindVendor, RawName: "Ozinga"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record id")
}

func TestReviewQueue_ListPending_ParsesPages(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	// Properties come back from the API as pointer types with PlainText set.
	page := notionapi.Page{
		ID: "page-1",
		Properties: notionapi.Properties{
			"Name": &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: "Owen Glasburn"}},
			},
			"Kind":      &notionapi.SelectProperty{Select: notionapi.Option{Name: "person"}},
			"Record ID": &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "hist-1"}}},
			"Report ID": &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "r-1"}}},
			"Candidate": &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "Owen Glassburn"}}},
			"Score":     &notionapi.NumberProperty{Number: 88},
			"Excerpt":   &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "ran the concrete crew"}}},
		},
	}

	mc.On("QueryDatabase", ctx, "db-review", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		if !ok {
			return false
		}
		return pf.Property == "Status" && pf.Status != nil && pf.Status.Equals == ReviewStatusPending
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{page},
		HasMore: false,
	}, nil).Once()

	items, err := NewReviewQueue(mc, "db-review").ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ReviewItem{
		PageID:    "page-1",
		Kind:      ReviewKindPerson,
		RecordID:  "hist-1",
		ReportID:  "r-1",
		RawName:   "Owen Glasburn",
		Candidate: "Owen Glassburn",
		Score:     88,
		Excerpt:   "ran the concrete crew",
	}, items[0])
	mc.AssertExpectations(t)
}

func TestReviewQueue_ListPending_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-err", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError).Once()

	items, err := NewReviewQueue(mc, "db-err").ListPending(ctx)
	require.Error(t, err)
	assert.Nil(t, items)
	assert.Contains(t, err.Error(), "notion: list pending reviews")
	mc.AssertExpectations(t)
}

func TestReviewQueue_MarkResolved(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("UpdatePage", ctx, "page-1", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		st, ok := req.Properties["Status"].(notionapi.StatusProperty)
		if !ok || st.Status.Name != ReviewStatusResolved {
			return false
		}
		sp, ok := req.Properties["Decision"].(notionapi.SelectProperty)
		return ok && sp.Select.Name == "mergeInto"
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	err := NewReviewQueue(mc, "db-review").MarkResolved(ctx, "page-1", "mergeInto")
	require.NoError(t, err)
	mc.AssertExpectations(t)
}

func TestPlainText_ConcatenatesRuns(t *testing.T) {
	assert.Equal(t, "ab", plainText([]notionapi.RichText{{PlainText: "a"}, {PlainText: "b"}}))
	assert.Equal(t, "", plainText(nil))
}
