// Package aggregator turns raw user actions into windowed feed aggregates.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

// Recorder routes incoming events: contextful actions go through the windowed
// aggregate transaction, context-less ones become standalone log entries.
type Recorder struct {
	store      store.Store
	window     time.Duration
	previewCap int
	log        zerolog.Logger
}

func New(st store.Store, window time.Duration, previewCap int, log zerolog.Logger) *Recorder {
	return &Recorder{
		store:      st,
		window:     window,
		previewCap: previewCap,
		log:        log.With().Str("component", "aggregator").Logger(),
	}
}

// Result reports what one Record call produced.
type Result struct {
	Aggregate *model.EventAggregate `json:"aggregate,omitempty"`
	Entry     *model.EventLogEntry  `json:"entry"`
}

// Record persists one event. Events without an owner or kind cannot be keyed
// to an aggregate and are logged standalone instead of being rejected.
func (r *Recorder) Record(ctx context.Context, e model.Event) (*Result, error) {
	if e.Kind == "" {
		return nil, fmt.Errorf("%w: event kind is required", model.ErrValidation)
	}
	if e.Visibility == "" {
		e.Visibility = model.VisibilityPublic
	}

	if e.OwnerID == "" {
		entry, err := r.store.Events().Insert(ctx, &model.EventLogEntry{
			ContextID: e.ContextID,
			Kind:      e.Kind,
			Payload:   e.Payload,
		})
		if err != nil {
			return nil, fmt.Errorf("insert standalone entry: %w", err)
		}
		return &Result{Entry: entry}, nil
	}

	agg, entry, err := r.store.Aggregates().RecordEvent(ctx, store.RecordEventParams{
		Event:      e,
		ItemCount:  itemCount(e.Payload),
		Window:     r.window,
		PreviewCap: r.previewCap,
	})
	if err != nil {
		return nil, fmt.Errorf("record event: %w", err)
	}
	r.log.Debug().Str("aggregateId", agg.AggregateID).Str("ownerId", e.OwnerID).
		Str("kind", e.Kind).Int("itemCount", agg.ItemCount).Msg("event recorded")
	return &Result{Aggregate: agg, Entry: entry}, nil
}

// itemCount reads an optional itemCount field from the payload; anything
// absent or malformed counts as a single item.
func itemCount(payload json.RawMessage) int {
	if len(payload) == 0 {
		return 1
	}
	var probe struct {
		ItemCount int `json:"itemCount"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.ItemCount < 1 {
		return 1
	}
	return probe.ItemCount
}
