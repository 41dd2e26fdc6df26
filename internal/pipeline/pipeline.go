// Package pipeline sequences a report through extraction, entity resolution,
// recording, and aggregation, and owns the report status state machine.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blueline-build/fieldreport-cli/internal/aggregate"
	"github.com/blueline-build/fieldreport-cli/internal/config"
	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/normalize"
	"github.com/blueline-build/fieldreport-cli/internal/recorder"
	"github.com/blueline-build/fieldreport-cli/internal/resilience"
	"github.com/blueline-build/fieldreport-cli/internal/resolve"
	"github.com/blueline-build/fieldreport-cli/internal/store"
	"github.com/blueline-build/fieldreport-cli/pkg/anthropic"
)

// Pipeline orchestrates report processing end to end.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	extractor  *Extractor
	recorder   *recorder.Recorder
	resolver   *resolve.Engine
	aggregator *aggregate.Engine
	retry      resilience.RetryConfig
}

// New wires a Pipeline from configuration. The nickname and rate tables load
// from their configured files when set, otherwise the built-in defaults apply.
func New(cfg *config.Config, st store.Store, client anthropic.Client) *Pipeline {
	nicknames := normalize.NewNicknameTable()
	if cfg.Resolution.NicknameFile != "" {
		loaded, err := normalize.LoadNicknameTable(cfg.Resolution.NicknameFile)
		if err != nil {
			zap.L().Warn("nickname table load failed, using defaults",
				zap.String("path", cfg.Resolution.NicknameFile),
				zap.Error(err),
			)
		} else {
			nicknames = loaded
		}
	}

	rates, err := config.LoadRateTable(cfg.Rates)
	if err != nil {
		zap.L().Warn("rate table load failed, using in-config rates",
			zap.String("path", cfg.Rates.RateFile),
			zap.Error(err),
		)
		rates = cfg.Rates
	}

	retry := retryFromConfig(cfg.Retry)
	resolver := resolve.NewEngine(st, normalize.NewScorer(nicknames), cfg.Resolution)

	return &Pipeline{
		cfg:        cfg,
		store:      st,
		extractor:  NewExtractor(client, st, cfg.Anthropic, retry),
		recorder:   recorder.New(st, resolver),
		resolver:   resolver,
		aggregator: aggregate.New(st, rates, cfg.Grades),
		retry:      retry,
	}
}

// Resolver exposes the resolution engine for review commands.
func (p *Pipeline) Resolver() *resolve.Engine {
	return p.resolver
}

// Aggregator exposes the aggregation engine for standalone recomputes.
func (p *Pipeline) Aggregator() *aggregate.Engine {
	return p.aggregator
}

func retryFromConfig(cfg config.RetryConfig) resilience.RetryConfig {
	out := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		out.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		out.InitialBackoff = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffSecs > 0 {
		out.MaxBackoff = time.Duration(cfg.MaxBackoffSecs) * time.Second
	}
	return out
}

// Ingest registers a new transcript as a pending report. The report id is
// derived from date, submitter, and submission time, so resubmitting the
// same transcript a second later yields a distinct report.
func (p *Pipeline) Ingest(ctx context.Context, projectID, submitterID string, reportDate time.Time, transcript string) (*model.Report, error) {
	if transcript == "" {
		return nil, eris.New("pipeline: empty transcript")
	}
	r := &model.Report{
		ID:            model.ReportID(reportDate, submitterID, time.Now().UTC()),
		ProjectID:     projectID,
		SubmitterID:   submitterID,
		ReportDate:    reportDate,
		RawTranscript: transcript,
		Status:        model.ReportStatusPending,
	}
	if err := p.store.CreateReport(ctx, r); err != nil {
		return nil, eris.Wrap(err, "pipeline: create report")
	}
	zap.L().Info("report ingested",
		zap.String("report_id", r.ID),
		zap.String("project_id", projectID),
		zap.Time("report_date", reportDate),
	)
	return r, nil
}

// ProcessReport runs one report through the full pipeline. It is safe to call
// repeatedly: every write below it keys off the report id. Published reports
// are returned as-is; archived reports are refused.
func (p *Pipeline) ProcessReport(ctx context.Context, reportID string) (*model.ProcessResult, error) {
	r, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load report %s", reportID)
	}
	if r == nil {
		return nil, eris.Errorf("pipeline: report %s not found", reportID)
	}

	switch r.Status {
	case model.ReportStatusArchived:
		return nil, eris.Errorf("pipeline: report %s is archived", reportID)
	case model.ReportStatusPublished:
		return &model.ProcessResult{ReportID: r.ID, Status: r.Status}, nil
	}

	return p.process(ctx, r, false)
}

// ReprocessReport supersedes the report's prior extraction attempts and runs
// the pipeline again with the cache bypassed. Used after prompt revisions and
// for reports that failed on malformed output.
func (p *Pipeline) ReprocessReport(ctx context.Context, reportID string) (*model.ProcessResult, error) {
	r, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load report %s", reportID)
	}
	if r == nil {
		return nil, eris.Errorf("pipeline: report %s not found", reportID)
	}
	if r.Status == model.ReportStatusArchived {
		return nil, eris.Errorf("pipeline: report %s is archived", reportID)
	}

	if err := p.store.SupersedeAttempts(ctx, reportID); err != nil {
		return nil, eris.Wrap(err, "pipeline: supersede attempts")
	}
	version, err := p.store.BumpExtractionVersion(ctx, reportID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: bump extraction version")
	}
	if err := p.store.UpdateReportStatus(ctx, reportID, model.ReportStatusPending, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: reset report status")
	}
	r.Status = model.ReportStatusPending
	r.ExtractionVersion = version

	zap.L().Info("reprocessing report",
		zap.String("report_id", reportID),
		zap.Int("extraction_version", version),
	)
	return p.process(ctx, r, true)
}

// ArchiveReport moves a published report to archived.
func (p *Pipeline) ArchiveReport(ctx context.Context, reportID string) error {
	r, err := p.store.GetReport(ctx, reportID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load report %s", reportID)
	}
	if r == nil {
		return eris.Errorf("pipeline: report %s not found", reportID)
	}
	if r.Status != model.ReportStatusPublished {
		return eris.Errorf("pipeline: report %s is %s, only published reports archive", reportID, r.Status)
	}
	return p.store.UpdateReportStatus(ctx, reportID, model.ReportStatusArchived, "")
}

// process drives the state machine for one report:
// pending_analysis -> analyzed -> published, failed on any fatal error.
func (p *Pipeline) process(ctx context.Context, r *model.Report, bypassCache bool) (*model.ProcessResult, error) {
	log := zap.L().With(zap.String("report_id", r.ID), zap.String("project_id", r.ProjectID))
	log.Info("processing report", zap.String("status", string(r.Status)))

	attempt, cacheHit, err := p.extractor.Extract(ctx, r, bypassCache)
	if err != nil {
		p.fail(ctx, r.ID, err)
		return nil, err
	}

	var rec recorder.Result
	recordCfg := p.retry
	recordCfg.OnRetry = resilience.RetryLogger("pipeline", "record")
	err = resilience.Do(ctx, recordCfg, func(ctx context.Context) error {
		var recErr error
		rec, recErr = p.recorder.Record(ctx, r, attempt.Payload)
		return recErr
	})
	if err != nil {
		p.fail(ctx, r.ID, err)
		return nil, eris.Wrapf(err, "pipeline: record report %s", r.ID)
	}

	if err := p.store.UpdateReportStatus(ctx, r.ID, model.ReportStatusAnalyzed, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: mark analyzed")
	}

	aggCfg := p.retry
	aggCfg.OnRetry = resilience.RetryLogger("pipeline", "aggregate")
	err = resilience.Do(ctx, aggCfg, func(ctx context.Context) error {
		_, aggErr := p.aggregator.Recompute(ctx, r.ProjectID, MonthWindow(r.ReportDate))
		return aggErr
	})
	if err != nil {
		p.fail(ctx, r.ID, err)
		return nil, eris.Wrapf(err, "pipeline: aggregate report %s", r.ID)
	}

	if err := p.store.UpdateReportStatus(ctx, r.ID, model.ReportStatusPublished, ""); err != nil {
		return nil, eris.Wrap(err, "pipeline: mark published")
	}

	log.Info("report published",
		zap.Bool("cache_hit", cacheHit),
		zap.Int("entities_created", rec.EntitiesCreated),
		zap.Int("entities_flagged", rec.EntitiesFlagged),
	)
	return &model.ProcessResult{
		ReportID:        r.ID,
		Status:          model.ReportStatusPublished,
		EntitiesCreated: rec.EntitiesCreated,
		EntitiesFlagged: rec.EntitiesFlagged,
		CacheHit:        cacheHit,
	}, nil
}

// fail moves the report to failed with the error as the recorded reason. The
// report stays retryable; a later ProcessReport starts over idempotently.
func (p *Pipeline) fail(ctx context.Context, reportID string, cause error) {
	if err := p.store.UpdateReportStatus(ctx, reportID, model.ReportStatusFailed, cause.Error()); err != nil {
		zap.L().Error("failed to record failure",
			zap.String("report_id", reportID),
			zap.Error(err),
		)
	}
	zap.L().Warn("report failed",
		zap.String("report_id", reportID),
		zap.Bool("malformed", resilience.IsMalformedExtraction(cause)),
		zap.Error(cause),
	)
}

// ProcessBatch processes reports concurrently with bounded parallelism.
// Individual report failures are collected, not fatal: one bad transcript
// must not sink the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, reportIDs []string) ([]model.ProcessResult, error) {
	limit := p.cfg.Batch.MaxConcurrentReports
	if limit <= 0 {
		limit = 4
	}

	// Prime the prompt cache once; every report in the fan-out then reads
	// the shared system prompt from cache. Failure only costs money.
	if len(reportIDs) > 1 {
		if err := p.extractor.WarmPromptCache(ctx); err != nil {
			zap.L().Warn("prompt cache warm failed", zap.Error(err))
		}
	}

	var mu sync.Mutex
	results := make([]model.ProcessResult, 0, len(reportIDs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, reportID := range reportIDs {
		g.Go(func() error {
			res, err := p.ProcessReport(gCtx, reportID)
			if err != nil {
				zap.L().Warn("batch report failed",
					zap.String("report_id", reportID),
					zap.Error(err),
				)
				res = &model.ProcessResult{ReportID: reportID, Status: model.ReportStatusFailed}
			}
			mu.Lock()
			results = append(results, *res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "pipeline: batch")
	}
	return results, nil
}

// MonthWindow returns the calendar-month aggregation window containing d.
func MonthWindow(d time.Time) store.Window {
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return store.Window{Start: start, End: start.AddDate(0, 1, 0)}
}
