// Package resolve maps raw transcript spellings onto canonical person and
// vendor records. The pipeline is exact match first, fuzzy score second,
// create last; mid-band scores attach to the best candidate but flag the
// record for human review instead of silently guessing.
package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/config"
	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/normalize"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

// Engine resolves extracted names against the canonical registry.
type Engine struct {
	store  store.Store
	scorer *normalize.Scorer
	cfg    config.ResolutionConfig
}

// NewEngine creates a resolution engine. Zero thresholds fall back to the
// 95/80 defaults.
func NewEngine(st store.Store, scorer *normalize.Scorer, cfg config.ResolutionConfig) *Engine {
	if cfg.AutoMatchThreshold <= 0 {
		cfg.AutoMatchThreshold = 95
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 80
	}
	if scorer == nil {
		scorer = normalize.NewScorer(nil)
	}
	return &Engine{store: st, scorer: scorer, cfg: cfg}
}

// ResolvePerson maps one raw personnel name to a canonical person, creating
// one when nothing in the registry comes close. seen is the report date used
// for first-seen on create.
func (e *Engine) ResolvePerson(ctx context.Context, rawName string, seen time.Time) (*model.Resolution, error) {
	raw := strings.TrimSpace(rawName)
	norm := normalize.Name(raw)
	if norm == "" {
		return nil, eris.Errorf("resolve: empty person name %q", rawName)
	}

	if p, err := e.store.FindPersonByName(ctx, norm); err != nil {
		return nil, eris.Wrapf(err, "resolve: person lookup %q", norm)
	} else if p != nil {
		return &model.Resolution{EntityID: p.ID, DisplayName: p.CanonicalName, Score: 100}, nil
	}

	candidates, err := e.store.ListActivePersons(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list persons")
	}

	var best *model.Person
	bestScore := 0
	for i := range candidates {
		c := &candidates[i]
		score := e.bestNameScore(norm, c.CanonicalName, c.NameVariants, normalize.Name)
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	switch {
	case best != nil && bestScore >= e.cfg.AutoMatchThreshold:
		if err := e.store.AddPersonVariant(ctx, best.ID, raw, norm); err != nil {
			return nil, eris.Wrapf(err, "resolve: add person variant %q", raw)
		}
		zap.L().Debug("person auto-matched",
			zap.String("raw_name", raw),
			zap.String("person_id", best.ID),
			zap.Int("score", bestScore),
		)
		return &model.Resolution{EntityID: best.ID, DisplayName: best.CanonicalName, Score: bestScore}, nil

	case best != nil && bestScore >= e.cfg.ReviewThreshold:
		zap.L().Info("person match flagged for review",
			zap.String("raw_name", raw),
			zap.String("candidate_id", best.ID),
			zap.String("candidate_name", best.CanonicalName),
			zap.Int("score", bestScore),
		)
		return &model.Resolution{EntityID: best.ID, DisplayName: best.CanonicalName, Score: bestScore, NeedsReview: true}, nil
	}

	p := &model.Person{
		CanonicalName: raw,
		NameVariants:  []string{raw},
		DateFirstSeen: seen,
		DateLastSeen:  seen,
		Status:        model.EntityStatusActive,
	}
	created, isNew, err := e.store.CreatePersonIfAbsent(ctx, p, norm)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: create person %q", raw)
	}
	if isNew {
		zap.L().Info("new person created",
			zap.String("person_id", created.ID),
			zap.String("canonical_name", created.CanonicalName),
			zap.Int("best_existing_score", bestScore),
		)
	}
	return &model.Resolution{EntityID: created.ID, DisplayName: created.CanonicalName, Created: isNew, Score: 100}, nil
}

// ResolveVendor maps one raw company name to a canonical vendor. Company
// normalization additionally strips legal suffixes before matching.
func (e *Engine) ResolveVendor(ctx context.Context, rawCompany string, seen time.Time) (*model.Resolution, error) {
	raw := strings.TrimSpace(rawCompany)
	norm := normalize.Company(raw)
	if norm == "" {
		return nil, eris.Errorf("resolve: empty vendor name %q", rawCompany)
	}

	if v, err := e.store.FindVendorByName(ctx, norm); err != nil {
		return nil, eris.Wrapf(err, "resolve: vendor lookup %q", norm)
	} else if v != nil {
		return &model.Resolution{EntityID: v.ID, DisplayName: v.CanonicalName, Score: 100}, nil
	}

	candidates, err := e.store.ListActiveVendors(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list vendors")
	}

	var best *model.Vendor
	bestScore := 0
	for i := range candidates {
		c := &candidates[i]
		score := e.bestNameScore(norm, c.CanonicalName, c.NameVariants, normalize.Company)
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	switch {
	case best != nil && bestScore >= e.cfg.AutoMatchThreshold:
		if err := e.store.AddVendorVariant(ctx, best.ID, raw, norm); err != nil {
			return nil, eris.Wrapf(err, "resolve: add vendor variant %q", raw)
		}
		return &model.Resolution{EntityID: best.ID, DisplayName: best.CanonicalName, Score: bestScore}, nil

	case best != nil && bestScore >= e.cfg.ReviewThreshold:
		zap.L().Info("vendor match flagged for review",
			zap.String("raw_name", raw),
			zap.String("candidate_id", best.ID),
			zap.String("candidate_name", best.CanonicalName),
			zap.Int("score", bestScore),
		)
		return &model.Resolution{EntityID: best.ID, DisplayName: best.CanonicalName, Score: bestScore, NeedsReview: true}, nil
	}

	v := &model.Vendor{
		CanonicalName: raw,
		NameVariants:  []string{raw},
		DateFirstSeen: seen,
		DateLastSeen:  seen,
		Status:        model.EntityStatusActive,
	}
	created, isNew, err := e.store.CreateVendorIfAbsent(ctx, v, norm)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: create vendor %q", raw)
	}
	if isNew {
		zap.L().Info("new vendor created",
			zap.String("vendor_id", created.ID),
			zap.String("canonical_name", created.CanonicalName),
			zap.Int("best_existing_score", bestScore),
		)
	}
	return &model.Resolution{EntityID: created.ID, DisplayName: created.CanonicalName, Created: isNew, Score: 100}, nil
}

// bestNameScore scores the normalized query against a candidate's canonical
// name and every recorded spelling, returning the max.
func (e *Engine) bestNameScore(norm, canonical string, variants []string, normFn func(string) string) int {
	best := e.scorer.Score(norm, normFn(canonical))
	for _, v := range variants {
		if s := e.scorer.Score(norm, normFn(v)); s > best {
			best = s
		}
	}
	return best
}
