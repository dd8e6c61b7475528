// Package match scores catalog rows against a probe title/creator using
// trigram similarity, for the near-duplicate review flow.
package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/similarity"
	"github.com/fTr0ut/shelvesai/internal/store"
)

const (
	titleWeight   = 0.7
	creatorWeight = 0.3

	// candidateLimit bounds how many rows of a kind are scored per probe.
	candidateLimit = 500
)

// Candidate is a collectable with its combined similarity score.
type Candidate struct {
	Collectable *model.Collectable
	Score       float64
}

// Matcher finds likely duplicates of a probe among stored collectables.
type Matcher struct {
	store store.Store
}

func New(st store.Store) *Matcher {
	return &Matcher{store: st}
}

// Match returns candidates of the same kind whose combined score meets or
// exceeds the threshold, best first. Title similarity dominates; creator
// similarity breaks near-ties. An empty title matches nothing and skips the
// store entirely. Order among equal scores follows store order, so results
// are stable across calls.
func (m *Matcher) Match(ctx context.Context, title, creator, kind string, threshold float64) ([]Candidate, error) {
	if title == "" {
		return nil, nil
	}
	rows, err := m.store.Collectables().ListCandidates(ctx, kind, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	out := make([]Candidate, 0, 8)
	for _, row := range rows {
		titleSim := similarity.Trigram(title, row.Title)
		if titleSim <= threshold {
			continue
		}
		rowCreator := ""
		if row.PrimaryCreator != nil {
			rowCreator = *row.PrimaryCreator
		}
		score := titleWeight*titleSim + creatorWeight*similarity.Trigram(creator, rowCreator)
		if score < threshold {
			continue
		}
		out = append(out, Candidate{Collectable: row, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Best returns the single highest-scoring candidate, or nil when nothing
// meets the threshold.
func (m *Matcher) Best(ctx context.Context, title, creator, kind string, threshold float64) (*Candidate, error) {
	out, err := m.Match(ctx, title, creator, kind, threshold)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}
