package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fTr0ut/shelvesai/internal/api/respond"
	"github.com/fTr0ut/shelvesai/internal/discovery"
	"github.com/fTr0ut/shelvesai/internal/model"
)

type IngestHandler struct {
	ingestor *discovery.Ingestor
	adapters map[string]discovery.Adapter
}

func NewIngestHandler(ingestor *discovery.Ingestor, adapters ...discovery.Adapter) *IngestHandler {
	byName := make(map[string]discovery.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Provider()] = a
	}
	return &IngestHandler{ingestor: ingestor, adapters: byName}
}

// batchAdapter wraps items posted directly in the request body.
type batchAdapter struct {
	provider string
	items    []model.DiscoveryItem
}

func (b *batchAdapter) Provider() string { return b.provider }
func (b *batchAdapter) Fetch(context.Context) ([]model.DiscoveryItem, error) {
	return b.items, nil
}

// IngestBatch ingests the items posted in the body under the path provider.
func (h *IngestHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	var in struct {
		Items []model.DiscoveryItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if len(in.Items) == 0 {
		respond.WriteBadRequest(w, "items must not be empty")
		return
	}
	tally, err := h.ingestor.IngestBatch(r.Context(), &batchAdapter{provider: provider, items: in.Items})
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, tally)
}

// RunAdapter triggers a pull from a registered adapter (RSS and friends).
func (h *IngestHandler) RunAdapter(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	adapter, ok := h.adapters[provider]
	if !ok {
		respond.WriteNotFound(w, "no adapter registered for provider "+provider)
		return
	}
	tally, err := h.ingestor.IngestBatch(r.Context(), adapter)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, tally)
}
