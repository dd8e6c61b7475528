// Package feed composes the activity feed: visible aggregates joined with
// social counters, interleaved with recommended discovery items.
package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

// RecommendationSource supplies discovery items for a viewer. The feed treats
// it as best-effort: failures degrade to an organic-only page.
type RecommendationSource interface {
	Recommend(ctx context.Context, viewerID string, limit int) ([]model.RecommendedItem, error)
}

const (
	defaultLimit = 20
	maxLimit     = 100

	// maxPerCategory caps how many discovery items one category may place on
	// a single page, so one noisy category cannot crowd out the rest.
	maxPerCategory = 2

	markSeenTimeout = 5 * time.Second
)

// categoryPriority orders discovery categories on the page; higher first.
// Unknown categories sort last by score alone.
var categoryPriority = map[string]int{
	"because_you_collected": 3,
	"friends_are_into":      2,
	"trending":              1,
}

// Composer builds feed pages.
type Composer struct {
	store  store.Store
	recs   RecommendationSource
	stride int
	log    zerolog.Logger
}

// NewComposer creates a composer. recs may be nil; stride is the number of
// organic entries between discovery insertions.
func NewComposer(st store.Store, recs RecommendationSource, stride int, log zerolog.Logger) *Composer {
	if stride < 1 {
		stride = 4
	}
	return &Composer{store: st, recs: recs, stride: stride, log: log.With().Str("component", "feed").Logger()}
}

// Compose builds one feed page for the query. Organic aggregates are the
// skeleton; discovery items are interleaved at the configured stride, with
// leftovers appended after the last organic entry. Pagination (offset/hasMore)
// tracks organic entries only, so discovery insertions never shift pages.
func (c *Composer) Compose(ctx context.Context, q model.FeedQuery) (*model.FeedPage, error) {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Scope == "" {
		q.Scope = model.ScopeAll
	}

	// Fetch one extra row to learn whether another page exists.
	probe := q
	probe.Limit = q.Limit + 1
	aggs, err := c.store.Aggregates().ListVisible(ctx, probe)
	if err != nil {
		return nil, fmt.Errorf("list visible aggregates: %w", err)
	}
	hasMore := len(aggs) > q.Limit
	if hasMore {
		aggs = aggs[:q.Limit]
	}

	organic, err := c.organicEntries(ctx, aggs, q.ViewerID)
	if err != nil {
		return nil, err
	}
	discovery := c.discoveryEntries(ctx, q.ViewerID, len(organic))

	return &model.FeedPage{
		Entries:    interleave(organic, discovery, c.stride),
		NextOffset: q.Offset + len(organic),
		HasMore:    hasMore,
	}, nil
}

func (c *Composer) organicEntries(ctx context.Context, aggs []*model.EventAggregate, viewerID string) ([]model.FeedEntry, error) {
	if len(aggs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(aggs))
	for i, a := range aggs {
		ids[i] = a.AggregateID
	}
	counters, err := c.store.Social().CountsFor(ctx, ids, viewerID)
	if err != nil {
		return nil, fmt.Errorf("social counters: %w", err)
	}

	out := make([]model.FeedEntry, 0, len(aggs))
	for _, a := range aggs {
		ws := a.WindowStart
		la := a.LastActivity
		out = append(out, model.FeedEntry{
			Ref:          model.FeedRef{Kind: model.RefAggregate, ID: a.AggregateID},
			EntryType:    "aggregate",
			Kind:         a.Kind,
			OwnerID:      a.OwnerID,
			ContextID:    a.ContextID,
			WindowStart:  &ws,
			LastActivity: &la,
			ItemCount:    a.ItemCount,
			Previews:     a.Previews,
			Social:       counters[a.AggregateID],
			Hints:        aggregateHints(a),
		})
	}
	return out, nil
}

// discoveryEntries fetches, filters and ranks recommendations. Anything that
// goes wrong is logged and the feed carries on without discovery.
func (c *Composer) discoveryEntries(ctx context.Context, viewerID string, organicCount int) []model.FeedEntry {
	if c.recs == nil || viewerID == "" || organicCount == 0 {
		return nil
	}
	budget := organicCount / c.stride
	if budget == 0 {
		return nil
	}

	items, err := c.recs.Recommend(ctx, viewerID, budget*2)
	if err != nil {
		c.log.Warn().Err(err).Str("viewerId", viewerID).Msg("recommendation source failed, serving organic only")
		return nil
	}
	seen, err := c.store.Discovery().Seen(ctx, viewerID)
	if err != nil {
		c.log.Warn().Err(err).Str("viewerId", viewerID).Msg("seen lookup failed, serving unfiltered recommendations")
		seen = nil
	}

	picked := rank(items, seen, budget)
	if len(picked) == 0 {
		return nil
	}
	c.markSeenAsync(viewerID, picked)

	out := make([]model.FeedEntry, 0, len(picked))
	for i := range picked {
		item := picked[i]
		out = append(out, model.FeedEntry{
			Ref:       model.FeedRef{Kind: model.RefDiscovery, ID: item.ItemID},
			EntryType: "discovery",
			Discovery: &item,
			Hints:     discoveryHints(item.Category),
		})
	}
	return out
}

// rank drops seen items, caps each category, then orders by category priority
// and score within category.
func rank(items []model.RecommendedItem, seen map[string]bool, budget int) []model.RecommendedItem {
	perCategory := map[string]int{}
	kept := make([]model.RecommendedItem, 0, len(items))
	for _, it := range items {
		if seen[it.ItemID] {
			continue
		}
		if perCategory[it.Category] >= maxPerCategory {
			continue
		}
		perCategory[it.Category]++
		kept = append(kept, it)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		pi, pj := categoryPriority[kept[i].Category], categoryPriority[kept[j].Category]
		if pi != pj {
			return pi > pj
		}
		return kept[i].Score > kept[j].Score
	})
	if len(kept) > budget {
		kept = kept[:budget]
	}
	return kept
}

// markSeenAsync records the served items so they are not recommended again.
// Fire-and-forget: composition latency and outcome are unaffected.
func (c *Composer) markSeenAsync(viewerID string, items []model.RecommendedItem) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), markSeenTimeout)
		defer cancel()
		if err := c.store.Discovery().MarkSeen(ctx, viewerID, ids); err != nil {
			c.log.Warn().Err(err).Str("viewerId", viewerID).Msg("mark seen failed")
		}
	}()
}

// interleave places one discovery entry after every stride organic entries.
// Discovery left over when the organics run out is appended at the end.
func interleave(organic, discovery []model.FeedEntry, stride int) []model.FeedEntry {
	if len(discovery) == 0 {
		return organic
	}
	out := make([]model.FeedEntry, 0, len(organic)+len(discovery))
	di := 0
	for i, entry := range organic {
		out = append(out, entry)
		if (i+1)%stride == 0 && di < len(discovery) {
			out = append(out, discovery[di])
			di++
		}
	}
	out = append(out, discovery[di:]...)
	return out
}

func aggregateHints(a *model.EventAggregate) model.DisplayHints {
	mode := "single"
	if a.ItemCount > 1 {
		mode = "stack"
	}
	return model.DisplayHints{ShowCard: true, ItemMode: mode}
}

func discoveryHints(category string) model.DisplayHints {
	titles := map[string]string{
		"because_you_collected": "Because you collected",
		"friends_are_into":      "Your friends are into",
		"trending":              "Trending now",
	}
	title, ok := titles[category]
	if !ok {
		title = "Discover"
	}
	return model.DisplayHints{ShowCard: true, SectionTitle: title, ItemMode: "promo"}
}
