package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/blueline-build/fieldreport-cli/internal/config"
	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/resilience"
	"github.com/blueline-build/fieldreport-cli/internal/store"
	"github.com/blueline-build/fieldreport-cli/pkg/anthropic"
)

// extractionSystemPrompt is the system prompt for transcript extraction. It is
// identical across reports for a given prompt version, which makes it a prompt
// cache target for batch runs.
const extractionSystemPrompt = `You are an extraction engine for construction daily reports dictated by field superintendents. The transcripts are voice-to-text output: expect filler words, run-on sentences, misheard names, and construction slang.

Extract the report into a single JSON object with EXACTLY these five top-level keys:

{
  "personnel": [
    {
      "name": "worker name as spoken",
      "position": "role if stated, e.g. foreman, operator",
      "team": "crew or team if stated",
      "hoursWorked": 8,
      "overtimeHours": 0,
      "healthStatus": "only if an injury or illness is mentioned",
      "extractedFromText": "verbatim transcript excerpt this record came from"
    }
  ],
  "workLogs": [
    {
      "team": "crew that did the work",
      "level": "floor/level/area if stated",
      "description": "what was done",
      "personnel": ["names involved, as spoken"],
      "hoursWorked": 8,
      "extractedFromText": "verbatim transcript excerpt"
    }
  ],
  "constraints": [
    {
      "category": "one of: design, material, labor, equipment, weather, coordination, inspection, other",
      "severity": "one of: low, medium, high, critical",
      "status": "open or resolved if stated",
      "costImpact": 0,
      "extractedFromText": "verbatim transcript excerpt"
    }
  ],
  "vendors": [
    {
      "company": "vendor or supplier name as spoken",
      "vendorType": "supplier, subcontractor, rental, hauler if inferable",
      "materials": "what was delivered",
      "deliveryTime": "time if stated",
      "issues": "delivery problems if any",
      "costImpact": 0,
      "onTime": true,
      "extractedFromText": "verbatim transcript excerpt"
    }
  ],
  "timeSummary": {
    "regularHours": 0,
    "overtimeHours": 0,
    "doubleTimeHours": 0,
    "shiftStart": "if stated",
    "shiftEnd": "if stated"
  }
}

Rules:
- Every record in personnel, workLogs, constraints, and vendors MUST include extractedFromText with the verbatim excerpt it was derived from. A record without provenance is worthless.
- All five top-level keys must be present. Use empty arrays when nothing was mentioned.
- Do not invent people, vendors, or hours. If hours are not stated for a person, use 0.
- Names are transcribed speech: keep them exactly as they appear, do not correct spelling.
- Respond with the JSON object only. No prose, no markdown fences.`

// extractionUserTemplate wraps the raw transcript for the user turn.
const extractionUserTemplate = `Extract the following daily report transcript:

<transcript>
%s
</transcript>`

// CacheKey derives the extraction cache key for a transcript under a prompt
// version. The same transcript re-extracted under a revised prompt misses the
// cache by construction.
func CacheKey(transcript, promptVersion string) string {
	sum := sha256.Sum256([]byte(transcript + "\x00" + promptVersion))
	return hex.EncodeToString(sum[:])
}

// Extractor turns raw transcripts into validated extraction attempts. Calls
// against the completion service are rate limited and cached by transcript
// content; malformed responses are persisted for audit but never retried.
type Extractor struct {
	client  anthropic.Client
	store   store.Store
	limiter *rate.Limiter
	cfg     config.AnthropicConfig
	retry   resilience.RetryConfig
}

// NewExtractor creates an Extractor with a rate limiter sized from the
// configured requests-per-minute budget.
func NewExtractor(client anthropic.Client, st store.Store, cfg config.AnthropicConfig, retry resilience.RetryConfig) *Extractor {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 20
	}
	return &Extractor{
		client:  client,
		store:   st,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		cfg:     cfg,
		retry:   retry,
	}
}

// WarmPromptCache issues a primer request so a batch fan-out reads the
// extraction system prompt from the provider's prompt cache instead of
// paying for it on every report.
func (e *Extractor) WarmPromptCache(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "extract: rate limiter")
	}

	_, err := anthropic.PrimerRequest(ctx, e.client, anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: 16,
		System:    anthropic.BuildCachedSystemBlocks(extractionSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: "ok"},
		},
	})
	if err != nil {
		return eris.Wrap(err, "extract: warm prompt cache")
	}
	return nil
}

// Extract produces a validated extraction attempt for the report. It returns
// the attempt, whether it was served from cache, and an error. When the
// response is malformed the attempt is still persisted (validation_passed =
// false) and the returned error chains to MalformedExtractionError so the
// orchestrator can fail the report without burning retries.
func (e *Extractor) Extract(ctx context.Context, report *model.Report, bypassCache bool) (*model.ExtractionAttempt, bool, error) {
	key := CacheKey(report.RawTranscript, e.cfg.PromptVersion)

	if !bypassCache {
		cached, err := e.store.FindAttemptByCacheKey(ctx, key)
		if err != nil {
			return nil, false, eris.Wrap(err, "extract: cache lookup")
		}
		if cached != nil && cached.Payload != nil {
			zap.L().Info("extraction cache hit",
				zap.String("report_id", report.ID),
				zap.String("cache_key", key),
				zap.String("source_report_id", cached.ReportID),
			)
			return cached, true, nil
		}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, false, eris.Wrap(err, "extract: rate limiter")
	}

	timeout := time.Duration(e.cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	temperature := 0.0
	req := anthropic.MessageRequest{
		Model:       e.cfg.Model,
		MaxTokens:   int64(e.cfg.MaxTokens),
		System:      anthropic.BuildCachedSystemBlocks(extractionSystemPrompt),
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractionUserTemplate, report.RawTranscript)},
		},
	}

	retryCfg := e.retry
	retryCfg.OnRetry = resilience.RetryLogger("extract", "create_message")
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return e.client.CreateMessage(callCtx, req)
	})
	if err != nil {
		return nil, false, eris.Wrapf(err, "extract: completion call for report %s", report.ID)
	}

	raw := resp.Text()
	resp.Usage.LogCost(resp.Model, "extraction")

	attempt := &model.ExtractionAttempt{
		ID:            uuid.New().String(),
		ReportID:      report.ID,
		CacheKey:      key,
		PromptVersion: e.cfg.PromptVersion,
		Model:         resp.Model,
		RawResponse:   raw,
		InputTokens:   int(resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens),
		OutputTokens:  int(resp.Usage.OutputTokens),
		CostUSD:       resp.Usage.EstimateCost(resp.Model),
		CreatedAt:     time.Now().UTC(),
	}

	payload, parseErr := parseExtraction(raw)
	if parseErr == nil {
		dropped := pruneUnattributed(payload)
		if dropped > 0 {
			zap.L().Warn("dropped records without source excerpts",
				zap.String("report_id", report.ID),
				zap.Int("dropped", dropped),
			)
		}
		attempt.Payload = payload
		attempt.ValidationPassed = true
		attempt.Confidence = extractionConfidence(payload, dropped)
	}

	// Persist even malformed attempts: the raw response is the audit trail
	// for prompt revisions.
	if err := e.store.CreateAttempt(ctx, attempt); err != nil {
		return nil, false, eris.Wrap(err, "extract: persist attempt")
	}

	if parseErr != nil {
		zap.L().Warn("extraction validation failed",
			zap.String("report_id", report.ID),
			zap.String("attempt_id", attempt.ID),
			zap.Error(parseErr),
		)
		return attempt, false, &resilience.MalformedExtractionError{
			ReportID: report.ID,
			Reason:   parseErr.Error(),
		}
	}

	return attempt, false, nil
}

// requiredKeys are the top-level keys the extraction contract demands.
var requiredKeys = []string{"personnel", "workLogs", "constraints", "vendors", "timeSummary"}

// parseExtraction recovers a typed Extraction from the raw model output.
// Recovery order: strip markdown fences, then fall back to the outermost JSON
// object in the text. Missing top-level keys fail validation even when the
// JSON itself parses.
func parseExtraction(raw string) (*model.Extraction, error) {
	candidate := stripCodeFences(raw)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &keys); err != nil {
		candidate = outermostObject(raw)
		if candidate == "" {
			return nil, eris.New("no JSON object in response")
		}
		if err := json.Unmarshal([]byte(candidate), &keys); err != nil {
			return nil, eris.Wrap(err, "parse response JSON")
		}
	}

	var missing []string
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("missing required keys: %s", strings.Join(missing, ", "))
	}

	var out model.Extraction
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, eris.Wrap(err, "decode extraction payload")
	}
	return &out, nil
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// outermostObject returns the substring from the first '{' to the last '}',
// which recovers JSON wrapped in conversational preamble.
func outermostObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// pruneUnattributed removes records that arrived without a source excerpt and
// returns how many were dropped. Provenance is mandatory: a record that cannot
// point back at the transcript cannot be reviewed or trusted.
func pruneUnattributed(x *model.Extraction) int {
	dropped := 0

	personnel := x.Personnel[:0]
	for _, p := range x.Personnel {
		if strings.TrimSpace(p.ExtractedFromText) == "" {
			dropped++
			continue
		}
		personnel = append(personnel, p)
	}
	x.Personnel = personnel

	workLogs := x.WorkLogs[:0]
	for _, w := range x.WorkLogs {
		if strings.TrimSpace(w.ExtractedFromText) == "" {
			dropped++
			continue
		}
		workLogs = append(workLogs, w)
	}
	x.WorkLogs = workLogs

	constraints := x.Constraints[:0]
	for _, c := range x.Constraints {
		if strings.TrimSpace(c.ExtractedFromText) == "" {
			dropped++
			continue
		}
		constraints = append(constraints, c)
	}
	x.Constraints = constraints

	vendors := x.Vendors[:0]
	for _, v := range x.Vendors {
		if strings.TrimSpace(v.ExtractedFromText) == "" {
			dropped++
			continue
		}
		vendors = append(vendors, v)
	}
	x.Vendors = vendors

	return dropped
}

// extractionConfidence scores an attempt by the share of records that carried
// provenance. An empty extraction is fully confident: quiet days happen.
func extractionConfidence(x *model.Extraction, dropped int) float64 {
	kept := len(x.Personnel) + len(x.WorkLogs) + len(x.Constraints) + len(x.Vendors)
	if kept+dropped == 0 {
		return 1.0
	}
	return float64(kept) / float64(kept+dropped)
}
