// Package discovery ingests items from external catalog adapters into the
// collectable store, deduplicating through the fingerprint tiers.
package discovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fTr0ut/shelvesai/internal/collectables"
	"github.com/fTr0ut/shelvesai/internal/fingerprint"
	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

// Adapter produces normalized items from one external provider.
type Adapter interface {
	Provider() string
	Fetch(ctx context.Context) ([]model.DiscoveryItem, error)
}

// Tally summarizes one ingest batch.
type Tally struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
	Errored  int `json:"errored"`
}

// Ingestor folds adapter output into the catalog. One bad item never aborts
// the batch.
type Ingestor struct {
	store   store.Store
	catalog *collectables.Service
	log     zerolog.Logger
}

func NewIngestor(st store.Store, catalog *collectables.Service, log zerolog.Logger) *Ingestor {
	return &Ingestor{store: st, catalog: catalog, log: log.With().Str("component", "discovery").Logger()}
}

// IngestBatch fetches from the adapter and ingests every item, returning the
// per-item outcome tally. Only the fetch itself is fatal.
func (in *Ingestor) IngestBatch(ctx context.Context, adapter Adapter) (Tally, error) {
	items, err := adapter.Fetch(ctx)
	if err != nil {
		return Tally{}, err
	}
	var tally Tally
	for i := range items {
		switch in.IngestItem(ctx, adapter.Provider(), &items[i]) {
		case OutcomeCreated:
			tally.Created++
		case OutcomeExisting:
			tally.Existing++
		case OutcomeSkipped:
			tally.Skipped++
		case OutcomeErrored:
			tally.Errored++
		}
	}
	in.log.Info().Str("provider", adapter.Provider()).
		Int("created", tally.Created).Int("existing", tally.Existing).
		Int("skipped", tally.Skipped).Int("errored", tally.Errored).
		Msg("ingest batch complete")
	return tally, nil
}

// Outcome classifies what one ingested item did to the catalog.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeExisting
	OutcomeSkipped
	OutcomeErrored
)

// IngestItem runs the dedup state machine for one item: no title skips it,
// a light+exact fingerprint hit records provenance only, everything else
// flows through the merging upsert.
func (in *Ingestor) IngestItem(ctx context.Context, provider string, item *model.DiscoveryItem) Outcome {
	if item.Title == "" {
		in.log.Debug().Str("provider", provider).Msg("skipping item without title")
		return OutcomeSkipped
	}
	src := sourceRef(provider, item)

	// Cheap tier first: if a row with the same light fingerprint also shares
	// the exact fingerprint, just record the new sighting.
	light := fingerprint.Light(item.Title, item.Kind)
	hits, err := in.store.Collectables().FindByLightFingerprint(ctx, light)
	if err != nil {
		// Lookup trouble degrades to the upsert path, which re-checks the
		// exact tier itself.
		in.log.Warn().Err(err).Str("provider", provider).Msg("light fingerprint lookup failed")
		hits = nil
	}
	if len(hits) > 0 {
		creator := ""
		if item.PrimaryCreator != nil {
			creator = *item.PrimaryCreator
		}
		year := 0
		if item.Year != nil {
			year = *item.Year
		}
		if exact, ok := fingerprint.Exact(item.Title, creator, year, item.Kind); ok {
			for _, hit := range hits {
				if hit.ExactFingerprint != nil && *hit.ExactFingerprint == exact {
					if err := in.store.Collectables().AppendSource(ctx, hit.ID, src); err != nil {
						in.log.Warn().Err(err).Int64("collectableId", hit.ID).Msg("append source failed")
						return OutcomeErrored
					}
					return OutcomeExisting
				}
			}
		}
	}

	_, created, err := in.catalog.Upsert(ctx, toCollectable(item, src))
	if err != nil {
		in.log.Warn().Err(err).Str("provider", provider).Str("title", item.Title).Msg("ingest upsert failed")
		return OutcomeErrored
	}
	if created {
		return OutcomeCreated
	}
	return OutcomeExisting
}

func sourceRef(provider string, item *model.DiscoveryItem) model.SourceRef {
	url := ""
	if item.SourceURL != nil {
		url = *item.SourceURL
	}
	return model.SourceRef{Provider: provider, URL: url, DiscoveredAt: time.Now().UTC()}
}

func toCollectable(item *model.DiscoveryItem, src model.SourceRef) *model.Collectable {
	return &model.Collectable{
		Kind:           item.Kind,
		Title:          item.Title,
		Subtitle:       item.Subtitle,
		Description:    item.Description,
		PrimaryCreator: item.PrimaryCreator,
		Creators:       item.Creators,
		Publishers:     item.Publishers,
		Year:           item.Year,
		Formats:        item.Formats,
		Tags:           item.Tags,
		Identifiers:    item.Identifiers,
		CoverURL:       item.CoverURL,
		ExternalID:     item.ExternalID,
		Sources:        []model.SourceRef{src},
	}
}
