package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fTr0ut/shelvesai/internal/aggregator"
	"github.com/fTr0ut/shelvesai/internal/api/respond"
	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

// actorID identifies the caller. An empty return means anonymous.
func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-Id")
}

type EventHandler struct {
	rec *aggregator.Recorder
	st  store.Store
}

func NewEventHandler(rec *aggregator.Recorder, st store.Store) *EventHandler {
	return &EventHandler{rec: rec, st: st}
}

func (h *EventHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ContextID  *string         `json:"contextId,omitempty"`
		Kind       string          `json:"kind"`
		Visibility string          `json:"visibility,omitempty"`
		Payload    json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	out, err := h.rec.Record(r.Context(), model.Event{
		OwnerID:    actorID(r),
		ContextID:  in.ContextID,
		Kind:       in.Kind,
		Visibility: in.Visibility,
		Payload:    in.Payload,
	})
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

func (h *EventHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	aggregateID := mux.Vars(r)["aggregateId"]
	agg, err := h.st.Aggregates().GetByID(r.Context(), aggregateID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "aggregate not found")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, agg)
}

func (h *EventHandler) ListAggregateEntries(w http.ResponseWriter, r *http.Request) {
	aggregateID := mux.Vars(r)["aggregateId"]
	entries, err := h.st.Events().ListByAggregate(r.Context(), aggregateID)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}
