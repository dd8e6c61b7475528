package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
	"github.com/fTr0ut/shelvesai/internal/store/sqlite"
)

type fakeRecs struct {
	items []model.RecommendedItem
	err   error
}

func (f *fakeRecs) Recommend(context.Context, string, int) ([]model.RecommendedItem, error) {
	return f.items, f.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	return sqlite.New(db)
}

func recordN(t *testing.T, st store.Store, owner string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, _, err := st.Aggregates().RecordEvent(context.Background(), store.RecordEventParams{
			Event: model.Event{
				OwnerID:    owner,
				Kind:       fmt.Sprintf("kind-%d", i),
				Visibility: model.VisibilityPublic,
			},
			ItemCount:  1,
			Window:     time.Hour,
			PreviewCap: 4,
		})
		require.NoError(t, err)
	}
}

func TestComposeOrganicOnly(t *testing.T) {
	st := newTestStore(t)
	recordN(t, st, "alice", 3)
	c := NewComposer(st, nil, 4, zerolog.Nop())

	page, err := c.Compose(context.Background(), model.FeedQuery{ViewerID: "bob", Scope: model.ScopeGlobal})
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)
	require.False(t, page.HasMore)
	require.Equal(t, 3, page.NextOffset)
	for _, e := range page.Entries {
		require.Equal(t, "aggregate", e.EntryType)
		require.Equal(t, model.RefAggregate, e.Ref.Kind)
		require.NotNil(t, e.Social)
		require.True(t, e.Hints.ShowCard)
	}
}

func TestComposePagination(t *testing.T) {
	st := newTestStore(t)
	recordN(t, st, "alice", 5)
	c := NewComposer(st, nil, 100, zerolog.Nop())

	page, err := c.Compose(context.Background(), model.FeedQuery{ViewerID: "bob", Scope: model.ScopeGlobal, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	require.True(t, page.HasMore)
	require.Equal(t, 2, page.NextOffset)

	rest, err := c.Compose(context.Background(), model.FeedQuery{ViewerID: "bob", Scope: model.ScopeGlobal, Limit: 10, Offset: page.NextOffset})
	require.NoError(t, err)
	require.Len(t, rest.Entries, 3)
	require.False(t, rest.HasMore)
}

func TestComposeInterleavesDiscovery(t *testing.T) {
	st := newTestStore(t)
	recordN(t, st, "alice", 4)
	recs := &fakeRecs{items: []model.RecommendedItem{
		{ItemID: "d1", Category: "trending", Title: "Pick One", Score: 0.9},
		{ItemID: "d2", Category: "trending", Title: "Pick Two", Score: 0.5},
	}}
	c := NewComposer(st, recs, 2, zerolog.Nop())

	page, err := c.Compose(context.Background(), model.FeedQuery{ViewerID: "bob", Scope: model.ScopeGlobal})
	require.NoError(t, err)
	// 4 organic at stride 2 gives budget 2: A A d1 A A d2.
	require.Len(t, page.Entries, 6)
	require.Equal(t, "discovery", page.Entries[2].EntryType)
	require.Equal(t, "d1", page.Entries[2].Ref.ID)
	require.Equal(t, "discovery", page.Entries[5].EntryType)
	require.Equal(t, model.RefDiscovery, page.Entries[2].Ref.Kind)
	// Pagination counts organic entries only.
	require.Equal(t, 4, page.NextOffset)

	// Served items are marked seen in the background.
	require.Eventually(t, func() bool {
		seen, err := st.Discovery().Seen(context.Background(), "bob")
		return err == nil && seen["d1"] && seen["d2"]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestComposeRecommendationFailureDegrades(t *testing.T) {
	st := newTestStore(t)
	recordN(t, st, "alice", 4)
	c := NewComposer(st, &fakeRecs{err: errors.New("upstream down")}, 2, zerolog.Nop())

	page, err := c.Compose(context.Background(), model.FeedQuery{ViewerID: "bob", Scope: model.ScopeGlobal})
	require.NoError(t, err)
	require.Len(t, page.Entries, 4)
	for _, e := range page.Entries {
		require.Equal(t, "aggregate", e.EntryType)
	}
}

func TestRankFiltersSeenAndCapsCategories(t *testing.T) {
	items := []model.RecommendedItem{
		{ItemID: "t1", Category: "trending", Score: 0.9},
		{ItemID: "t2", Category: "trending", Score: 0.8},
		{ItemID: "t3", Category: "trending", Score: 0.7}, // over category cap
		{ItemID: "b1", Category: "because_you_collected", Score: 0.4},
		{ItemID: "s1", Category: "trending", Score: 1.0}, // seen
	}
	got := rank(items, map[string]bool{"s1": true}, 10)
	require.Len(t, got, 3)
	// Higher-priority category leads despite lower score.
	require.Equal(t, "b1", got[0].ItemID)
	require.Equal(t, "t1", got[1].ItemID)
	require.Equal(t, "t2", got[2].ItemID)
}

func TestInterleaveAppendsLeftovers(t *testing.T) {
	organic := []model.FeedEntry{{EntryType: "aggregate"}, {EntryType: "aggregate"}}
	discovery := []model.FeedEntry{
		{EntryType: "discovery", Ref: model.FeedRef{Kind: model.RefDiscovery, ID: "a"}},
		{EntryType: "discovery", Ref: model.FeedRef{Kind: model.RefDiscovery, ID: "b"}},
	}
	got := interleave(organic, discovery, 2)
	require.Len(t, got, 4)
	require.Equal(t, "a", got[2].Ref.ID)
	require.Equal(t, "b", got[3].Ref.ID)
}
