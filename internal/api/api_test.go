package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fTr0ut/shelvesai/internal/aggregator"
	"github.com/fTr0ut/shelvesai/internal/api/recovery"
	"github.com/fTr0ut/shelvesai/internal/collectables"
	"github.com/fTr0ut/shelvesai/internal/discovery"
	"github.com/fTr0ut/shelvesai/internal/feed"
	"github.com/fTr0ut/shelvesai/internal/match"
	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
	"github.com/fTr0ut/shelvesai/internal/store/sqlite"
)

func newTestRouter(t *testing.T) (*mux.Router, store.Store) {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	st := sqlite.New(db)

	log := zerolog.Nop()
	catalog := collectables.NewService(st, nil, log)
	recorder := aggregator.New(st, time.Hour, 4, log)
	ingestor := discovery.NewIngestor(st, catalog, log)
	composer := feed.NewComposer(st, nil, 4, log)

	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	events := NewEventHandler(recorder, st)
	root.HandleFunc("/api/events", events.RecordEvent).Methods("POST")
	root.HandleFunc("/api/aggregates/{aggregateId}", events.GetAggregate).Methods("GET")
	root.HandleFunc("/api/aggregates/{aggregateId}/entries", events.ListAggregateEntries).Methods("GET")

	coll := NewCollectableHandler(catalog, match.New(st), 0.3)
	root.HandleFunc("/api/collectables", coll.Upsert).Methods("POST")
	root.HandleFunc("/api/collectables/matches", coll.Matches).Methods("GET")
	root.HandleFunc("/api/collectables/{collectableId}", coll.Get).Methods("GET")

	ingest := NewIngestHandler(ingestor)
	root.HandleFunc("/api/ingest/{provider}", ingest.IngestBatch).Methods("POST")
	root.HandleFunc("/api/ingest/{provider}/run", ingest.RunAdapter).Methods("POST")

	feedHandler := NewFeedHandler(composer)
	root.HandleFunc("/api/feed", feedHandler.GetFeed).Methods("GET")

	social := NewSocialHandler(st)
	root.HandleFunc("/api/aggregates/{aggregateId}/likes", social.Like).Methods("POST")
	root.HandleFunc("/api/aggregates/{aggregateId}/likes", social.Unlike).Methods("DELETE")
	root.HandleFunc("/api/aggregates/{aggregateId}/comments", social.AddComment).Methods("POST")
	root.HandleFunc("/api/friends", social.UpsertFriendship).Methods("POST")

	return root, st
}

func doJSON(t *testing.T, router *mux.Router, method, path, actor string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRecordEventAndFetchAggregate(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/events", "alice", map[string]interface{}{
		"kind":    "added_book",
		"payload": map[string]interface{}{"title": "Dune"},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var out struct {
		Aggregate *model.EventAggregate `json:"aggregate"`
		Entry     *model.EventLogEntry  `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotNil(t, out.Aggregate)
	require.NotNil(t, out.Entry)

	got := doJSON(t, router, "GET", "/api/aggregates/"+out.Aggregate.AggregateID, "alice", nil)
	require.Equal(t, http.StatusOK, got.Code)

	entries := doJSON(t, router, "GET", "/api/aggregates/"+out.Aggregate.AggregateID+"/entries", "alice", nil)
	require.Equal(t, http.StatusOK, entries.Code)
	require.Contains(t, entries.Body.String(), `"count":1`)
}

func TestRecordEventRejectsMissingKind(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := doJSON(t, router, "POST", "/api/events", "alice", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCollectableUpsertAndGet(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/collectables", "", map[string]interface{}{
		"kind":           "book",
		"title":          "Dune",
		"primaryCreator": "Frank Herbert",
		"year":           1965,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var created model.Collectable
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	// Second post with the same identity merges instead of creating.
	again := doJSON(t, router, "POST", "/api/collectables", "", map[string]interface{}{
		"kind":           "book",
		"title":          "Dune",
		"primaryCreator": "Frank Herbert",
		"year":           1965,
		"tags":           []string{"sci-fi"},
	})
	require.Equal(t, http.StatusOK, again.Code)

	got := doJSON(t, router, "GET", fmt.Sprintf("/api/collectables/%d", created.ID), "", nil)
	require.Equal(t, http.StatusOK, got.Code)
	require.Contains(t, got.Body.String(), "sci-fi")

	missing := doJSON(t, router, "GET", "/api/collectables/99999", "", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestMatchesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/collectables", "", map[string]interface{}{
		"kind": "book", "title": "The Left Hand of Darkness", "primaryCreator": "Ursula K. Le Guin", "year": 1969,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	got := doJSON(t, router, "GET", "/api/collectables/matches?title=Left+Hand+of+Darkness&kind=book", "", nil)
	require.Equal(t, http.StatusOK, got.Code)
	require.Contains(t, got.Body.String(), `"count":1`)

	bad := doJSON(t, router, "GET", "/api/collectables/matches", "", nil)
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestIngestEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/ingest/pubfeed", "", map[string]interface{}{
		"items": []map[string]interface{}{
			{"kind": "book", "title": "Solaris", "primaryCreator": "Lem", "year": 1961},
			{"kind": "book", "title": ""},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"created":1`)
	require.Contains(t, rr.Body.String(), `"skipped":1`)

	unknown := doJSON(t, router, "POST", "/api/ingest/nope/run", "", map[string]string{})
	require.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestFeedEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		rr := doJSON(t, router, "POST", "/api/events", "alice", map[string]interface{}{
			"kind": fmt.Sprintf("kind-%d", i),
		})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	got := doJSON(t, router, "GET", "/api/feed?scope=global", "bob", nil)
	require.Equal(t, http.StatusOK, got.Code)
	var page model.FeedPage
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &page))
	require.Len(t, page.Entries, 3)

	bad := doJSON(t, router, "GET", "/api/feed?scope=everything", "bob", nil)
	require.Equal(t, http.StatusBadRequest, bad.Code)

	noActor := doJSON(t, router, "GET", "/api/feed?scope=self", "", nil)
	require.Equal(t, http.StatusBadRequest, noActor.Code)
}

func TestSocialEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/events", "alice", map[string]interface{}{"kind": "added_book"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var out struct {
		Aggregate *model.EventAggregate `json:"aggregate"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	aggID := out.Aggregate.AggregateID

	require.Equal(t, http.StatusOK,
		doJSON(t, router, "POST", "/api/aggregates/"+aggID+"/likes", "bob", map[string]string{}).Code)
	require.Equal(t, http.StatusUnauthorized,
		doJSON(t, router, "POST", "/api/aggregates/"+aggID+"/likes", "", map[string]string{}).Code)
	require.Equal(t, http.StatusCreated,
		doJSON(t, router, "POST", "/api/aggregates/"+aggID+"/comments", "bob", map[string]string{"body": "nice shelf"}).Code)
	require.Equal(t, http.StatusBadRequest,
		doJSON(t, router, "POST", "/api/aggregates/"+aggID+"/comments", "bob", map[string]string{"body": "  "}).Code)
	require.Equal(t, http.StatusOK,
		doJSON(t, router, "DELETE", "/api/aggregates/"+aggID+"/likes", "bob", nil).Code)

	require.Equal(t, http.StatusOK,
		doJSON(t, router, "POST", "/api/friends", "alice", map[string]string{"friendId": "bob", "status": "accepted"}).Code)
	require.Equal(t, http.StatusBadRequest,
		doJSON(t, router, "POST", "/api/friends", "alice", map[string]string{"friendId": "alice", "status": "accepted"}).Code)
}
