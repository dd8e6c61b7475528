// Package collectables implements the catalog write path: fingerprint
// computation, exact-tier dedup and non-destructive merge on top of the
// collectable store.
package collectables

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fTr0ut/shelvesai/internal/fingerprint"
	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

// CoverEnqueuer accepts background cover-download jobs. Enqueue returns false
// when the queue is full; callers treat that as a soft failure.
type CoverEnqueuer interface {
	Enqueue(collectableID int64, url string) bool
}

// Service upserts collectables with merge-on-duplicate semantics.
type Service struct {
	store  store.Store
	covers CoverEnqueuer
	log    zerolog.Logger
}

func NewService(st store.Store, covers CoverEnqueuer, log zerolog.Logger) *Service {
	return &Service{store: st, covers: covers, log: log.With().Str("component", "collectables").Logger()}
}

// Upsert inserts the candidate or merges it into the existing row that shares
// its exact fingerprint. The returned bool is true when a new row was created.
// A concurrent insert of the same fingerprint is retried as a merge, so two
// racing writers converge on one row.
func (s *Service) Upsert(ctx context.Context, candidate *model.Collectable) (*model.Collectable, bool, error) {
	if candidate == nil {
		return nil, false, fmt.Errorf("%w: nil collectable", model.ErrValidation)
	}
	if strings.TrimSpace(candidate.Title) == "" {
		return nil, false, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	s.fill(candidate)

	if candidate.ExactFingerprint != nil {
		existing, err := s.store.Collectables().FindByExactFingerprint(ctx, *candidate.ExactFingerprint)
		if err != nil {
			return nil, false, fmt.Errorf("exact lookup: %w", err)
		}
		if existing != nil {
			return s.mergeInto(ctx, existing, candidate)
		}
	}

	created, err := s.store.Collectables().Insert(ctx, candidate)
	if err == nil {
		s.maybeEnqueueCover(created)
		return created, true, nil
	}
	if !errors.Is(err, model.ErrConflict) || candidate.ExactFingerprint == nil {
		return nil, false, fmt.Errorf("insert collectable: %w", err)
	}

	// Lost the race to another writer; the row exists now, so merge into it.
	existing, ferr := s.store.Collectables().FindByExactFingerprint(ctx, *candidate.ExactFingerprint)
	if ferr != nil {
		return nil, false, fmt.Errorf("re-find after conflict: %w", ferr)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("insert collectable: %w", err)
	}
	return s.mergeInto(ctx, existing, candidate)
}

func (s *Service) mergeInto(ctx context.Context, existing, candidate *model.Collectable) (*model.Collectable, bool, error) {
	merged := merge(existing, candidate)
	updated, err := s.store.Collectables().Update(ctx, merged)
	if err != nil {
		return nil, false, fmt.Errorf("merge update: %w", err)
	}
	s.maybeEnqueueCover(updated)
	return updated, false, nil
}

// fill computes any fingerprint the caller left blank from the candidate's
// descriptive fields.
func (s *Service) fill(c *model.Collectable) {
	creator := ""
	if c.PrimaryCreator != nil {
		creator = *c.PrimaryCreator
	}
	year := 0
	if c.Year != nil {
		year = *c.Year
	}
	if c.ExactFingerprint == nil {
		if fp, ok := fingerprint.Exact(c.Title, creator, year, c.Kind); ok {
			c.ExactFingerprint = &fp
		}
	}
	if c.LightFingerprint == "" {
		c.LightFingerprint = fingerprint.Light(c.Title, c.Kind)
	}
	fz := fingerprint.Fuzzy(c.Title, creator)
	if !containsString(c.FuzzyFingerprints, fz) {
		c.FuzzyFingerprints = append(c.FuzzyFingerprints, fz)
	}
}

// AddFuzzyFingerprint registers an alternate fuzzy fingerprint for a
// collectable, typically after a near-duplicate confirmation.
func (s *Service) AddFuzzyFingerprint(ctx context.Context, id int64, fp string) error {
	if fp == "" {
		return fmt.Errorf("%w: empty fingerprint", model.ErrValidation)
	}
	return s.store.Collectables().AddFuzzyFingerprint(ctx, id, fp)
}

// Get returns a collectable by id.
func (s *Service) Get(ctx context.Context, id int64) (*model.Collectable, error) {
	return s.store.Collectables().GetByID(ctx, id)
}

// maybeEnqueueCover schedules a cover download when the row has a remote URL
// but no cached file yet. Cover work never affects the upsert outcome.
func (s *Service) maybeEnqueueCover(c *model.Collectable) {
	if s.covers == nil || c.CoverURL == nil || *c.CoverURL == "" || c.CoverPath != nil {
		return
	}
	if !s.covers.Enqueue(c.ID, *c.CoverURL) {
		s.log.Warn().Int64("collectableId", c.ID).Msg("cover queue full, skipping download")
	}
}

func containsString(lst []string, v string) bool {
	for _, s := range lst {
		if s == v {
			return true
		}
	}
	return false
}
