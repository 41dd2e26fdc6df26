package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blueline-build/fieldreport-cli/internal/config"
	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/store"
	"github.com/blueline-build/fieldreport-cli/pkg/anthropic"
)

// mockCompletionClient is a scripted anthropic.Client. Responses and errors
// are consumed in call order; safe for concurrent batch tests.
type mockCompletionClient struct {
	mu        sync.Mutex
	responses []*anthropic.MessageResponse
	errs      []error
	requests  []anthropic.MessageRequest
	calls     int
}

func (m *mockCompletionClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return nil, errors.New("mock: no response scripted for call")
}

// textResponse builds a single-text-block response with token usage filled in.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:    "msg-test",
		Model: "claude-sonnet-4-5-20250929",
		Content: []anthropic.ContentBlock{
			{Type: "text", Text: text},
		},
		StopReason: "end_turn",
		Usage: anthropic.TokenUsage{
			InputTokens:  1200,
			OutputTokens: 400,
		},
	}
}

// respList builds scripted responses from raw text bodies.
func respList(texts ...string) []*anthropic.MessageResponse {
	out := make([]*anthropic.MessageResponse, len(texts))
	for i, txt := range texts {
		out[i] = textResponse(txt)
	}
	return out
}

// newTestStore opens a migrated SQLite store in a temp dir.
func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedReport creates a pending report row so foreign keys hold.
func seedReport(t *testing.T, st store.Store, id, transcript string) *model.Report {
	t.Helper()
	r := &model.Report{
		ID:            id,
		ProjectID:     "proj-1",
		SubmitterID:   "foreman-1",
		ReportDate:    time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		RawTranscript: transcript,
	}
	require.NoError(t, st.CreateReport(context.Background(), r))
	return r
}

// testAnthropicConfig returns extraction settings with a rate limit high
// enough that tests never sleep on the limiter.
func testAnthropicConfig() config.AnthropicConfig {
	return config.AnthropicConfig{
		Model:             "claude-sonnet-4-5-20250929",
		MaxTokens:         4096,
		TimeoutSecs:       5,
		RequestsPerMinute: 60000,
		PromptVersion:     "v3",
	}
}
