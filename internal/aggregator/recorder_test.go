package aggregator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
	"github.com/fTr0ut/shelvesai/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	return sqlite.New(db)
}

func TestRecordAggregatesWithinWindow(t *testing.T) {
	st := newTestStore(t)
	rec := New(st, time.Hour, 4, zerolog.Nop())
	ctx := context.Background()

	first, err := rec.Record(ctx, model.Event{OwnerID: "alice", Kind: "added_book"})
	require.NoError(t, err)
	require.NotNil(t, first.Aggregate)
	require.Equal(t, 1, first.Aggregate.ItemCount)

	second, err := rec.Record(ctx, model.Event{OwnerID: "alice", Kind: "added_book", Payload: json.RawMessage(`{"itemCount":3}`)})
	require.NoError(t, err)
	require.Equal(t, first.Aggregate.AggregateID, second.Aggregate.AggregateID)
	require.Equal(t, 4, second.Aggregate.ItemCount)
}

func TestRecordKeysByOwnerContextKind(t *testing.T) {
	st := newTestStore(t)
	rec := New(st, time.Hour, 4, zerolog.Nop())
	ctx := context.Background()
	shelf := "shelf-1"

	a, err := rec.Record(ctx, model.Event{OwnerID: "alice", Kind: "added_book"})
	require.NoError(t, err)
	b, err := rec.Record(ctx, model.Event{OwnerID: "alice", ContextID: &shelf, Kind: "added_book"})
	require.NoError(t, err)
	c, err := rec.Record(ctx, model.Event{OwnerID: "bob", Kind: "added_book"})
	require.NoError(t, err)

	require.NotEqual(t, a.Aggregate.AggregateID, b.Aggregate.AggregateID)
	require.NotEqual(t, a.Aggregate.AggregateID, c.Aggregate.AggregateID)
}

func TestRecordWithoutOwnerLogsStandalone(t *testing.T) {
	st := newTestStore(t)
	rec := New(st, time.Hour, 4, zerolog.Nop())

	got, err := rec.Record(context.Background(), model.Event{Kind: "catalog_sync"})
	require.NoError(t, err)
	require.Nil(t, got.Aggregate)
	require.NotNil(t, got.Entry)
	require.Nil(t, got.Entry.AggregateID)
}

func TestRecordRequiresKind(t *testing.T) {
	rec := New(newTestStore(t), time.Hour, 4, zerolog.Nop())
	_, err := rec.Record(context.Background(), model.Event{OwnerID: "alice"})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestItemCountDefaults(t *testing.T) {
	require.Equal(t, 1, itemCount(nil))
	require.Equal(t, 1, itemCount(json.RawMessage(`{"title":"x"}`)))
	require.Equal(t, 1, itemCount(json.RawMessage(`not json`)))
	require.Equal(t, 1, itemCount(json.RawMessage(`{"itemCount":0}`)))
	require.Equal(t, 5, itemCount(json.RawMessage(`{"itemCount":5}`)))
}
