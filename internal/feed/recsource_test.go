package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPRecommendationSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/recommendations", r.URL.Path)
		require.Equal(t, "alice", r.URL.Query().Get("viewer"))
		require.Equal(t, "4", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"itemId":"r1","category":"trending","title":"Pick","score":0.8}]}`))
	}))
	defer srv.Close()

	src := NewHTTPRecommendationSource(srv.URL)
	items, err := src.Recommend(context.Background(), "alice", 4)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "r1", items[0].ItemID)
}

func TestHTTPRecommendationSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPRecommendationSource(srv.URL).Recommend(context.Background(), "alice", 4)
	require.Error(t, err)
}
