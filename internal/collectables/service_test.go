package collectables

import (
	"context"
	"testing"

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

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestUpsertCreatesThenMerges(t *testing.T) {
	svc := NewService(newTestStore(t), nil, zerolog.Nop())
	ctx := context.Background()

	first, created, err := svc.Upsert(ctx, &model.Collectable{
		Kind:           "book",
		Title:          "Dune",
		PrimaryCreator: strPtr("Frank Herbert"),
		Year:           intPtr(1965),
		Tags:           []string{"sci-fi"},
	})
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, first.ExactFingerprint)
	require.NotEmpty(t, first.LightFingerprint)
	require.Len(t, first.FuzzyFingerprints, 1)

	second, created, err := svc.Upsert(ctx, &model.Collectable{
		Kind:           "book",
		Title:          "Dune",
		PrimaryCreator: strPtr("Frank Herbert"),
		Year:           intPtr(1965),
		Description:    strPtr("Desert planet epic."),
		Tags:           []string{"adventure"},
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Description)
	require.ElementsMatch(t, []string{"sci-fi", "adventure"}, second.Tags)
}

func TestUpsertMergeDoesNotDropFields(t *testing.T) {
	svc := NewService(newTestStore(t), nil, zerolog.Nop())
	ctx := context.Background()

	_, _, err := svc.Upsert(ctx, &model.Collectable{
		Kind:           "book",
		Title:          "Hyperion",
		PrimaryCreator: strPtr("Dan Simmons"),
		Year:           intPtr(1989),
		Subtitle:       strPtr("Hyperion Cantos 1"),
		Identifiers:    map[string]string{"isbn": "978-0553283686"},
		Publishers:     []string{"Doubleday"},
	})
	require.NoError(t, err)

	// Sparse second sighting: nothing already known may be lost.
	got, created, err := svc.Upsert(ctx, &model.Collectable{
		Kind:           "book",
		Title:          "Hyperion",
		PrimaryCreator: strPtr("Dan Simmons"),
		Year:           intPtr(1989),
		Identifiers:    map[string]string{"goodreads": "77566"},
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "Hyperion Cantos 1", *got.Subtitle)
	require.Equal(t, "978-0553283686", got.Identifiers["isbn"])
	require.Equal(t, "77566", got.Identifiers["goodreads"])
	require.Equal(t, []string{"Doubleday"}, got.Publishers)
}

func TestUpsertRejectsEmptyTitle(t *testing.T) {
	svc := NewService(newTestStore(t), nil, zerolog.Nop())
	_, _, err := svc.Upsert(context.Background(), &model.Collectable{Kind: "book", Title: "  "})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestUpsertWithoutExactFingerprintAlwaysInserts(t *testing.T) {
	svc := NewService(newTestStore(t), nil, zerolog.Nop())
	ctx := context.Background()

	// No creator and no year: only the light/fuzzy tiers exist, so repeated
	// upserts do not collapse at the exact tier.
	a, created, err := svc.Upsert(ctx, &model.Collectable{Kind: "game", Title: "Untitled Prototype"})
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, a.ExactFingerprint) // creator/year empty is still a valid exact key

	b, created, err := svc.Upsert(ctx, &model.Collectable{Kind: "game", Title: "Untitled Prototype"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, a.ID, b.ID)
}

// racingStore simulates a writer losing an insert race: the first exact
// lookup misses, Insert fails with a unique-constraint conflict, and the
// re-find returns the row the other writer just created.
type racingStore struct {
	store.Store
	coll racingCollectables
}

func (r *racingStore) Collectables() store.Collectables { return &r.coll }

type racingCollectables struct {
	store.Collectables
	winner  *model.Collectable
	lookups int
	updated *model.Collectable
}

func (c *racingCollectables) FindByExactFingerprint(_ context.Context, _ string) (*model.Collectable, error) {
	c.lookups++
	if c.lookups == 1 {
		return nil, nil
	}
	return c.winner, nil
}

func (c *racingCollectables) Insert(_ context.Context, _ *model.Collectable) (*model.Collectable, error) {
	return nil, model.ErrConflict
}

func (c *racingCollectables) Update(_ context.Context, m *model.Collectable) (*model.Collectable, error) {
	c.updated = m
	return m, nil
}

func TestUpsertInsertConflictRetriesAsMerge(t *testing.T) {
	winner := &model.Collectable{
		ID:    7,
		Kind:  "book",
		Title: "Dune",
		Tags:  []string{"sci-fi"},
	}
	st := &racingStore{coll: racingCollectables{winner: winner}}
	svc := NewService(st, nil, zerolog.Nop())

	got, created, err := svc.Upsert(context.Background(), &model.Collectable{
		Kind:           "book",
		Title:          "Dune",
		PrimaryCreator: strPtr("Frank Herbert"),
		Year:           intPtr(1965),
		Tags:           []string{"adventure"},
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, winner.ID, got.ID)
	require.Equal(t, 2, st.coll.lookups)
	require.NotNil(t, st.coll.updated)
	require.ElementsMatch(t, []string{"sci-fi", "adventure"}, got.Tags)
}

type fullQueue struct{}

func (fullQueue) Enqueue(int64, string) bool { return false }

func TestCoverQueueFullDoesNotFailUpsert(t *testing.T) {
	svc := NewService(newTestStore(t), fullQueue{}, zerolog.Nop())
	got, created, err := svc.Upsert(context.Background(), &model.Collectable{
		Kind:     "book",
		Title:    "Ubik",
		CoverURL: strPtr("https://covers.example.com/ubik.jpg"),
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Nil(t, got.CoverPath)
}
