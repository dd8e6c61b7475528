package covers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
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

func TestWorkerDownloadsAndRecordsPath(t *testing.T) {
	st := newTestStore(t)
	row, err := st.Collectables().Insert(context.Background(), &model.Collectable{
		Kind: "book", Title: "Ringworld", LightFingerprint: "lf-ringworld",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("fake-jpeg-bytes"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWorker(st, t.TempDir(), 4, zerolog.Nop())
	w.Start(ctx)
	require.True(t, w.Enqueue(row.ID, srv.URL+"/cover.jpg"))

	require.Eventually(t, func() bool {
		got, err := st.Collectables().GetByID(context.Background(), row.ID)
		return err == nil && got.CoverPath != nil
	}, 3*time.Second, 20*time.Millisecond)

	got, err := st.Collectables().GetByID(context.Background(), row.ID)
	require.NoError(t, err)
	data, err := os.ReadFile(*got.CoverPath)
	require.NoError(t, err)
	require.Equal(t, "fake-jpeg-bytes", string(data))
}

func TestWorkerFailureLeavesRowUntouched(t *testing.T) {
	st := newTestStore(t)
	row, err := st.Collectables().Insert(context.Background(), &model.Collectable{
		Kind: "book", Title: "Gateway", LightFingerprint: "lf-gateway",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWorker(st, t.TempDir(), 4, zerolog.Nop())
	w.Start(ctx)
	require.True(t, w.Enqueue(row.ID, srv.URL+"/missing.jpg"))

	time.Sleep(200 * time.Millisecond)
	got, err := st.Collectables().GetByID(context.Background(), row.ID)
	require.NoError(t, err)
	require.Nil(t, got.CoverPath)
}

func TestEnqueueFullQueue(t *testing.T) {
	w := NewWorker(newTestStore(t), t.TempDir(), 1, zerolog.Nop())
	// Not started, so the single slot fills and stays full.
	require.True(t, w.Enqueue(1, "http://example.com/a.jpg"))
	require.False(t, w.Enqueue(2, "http://example.com/b.jpg"))
}
