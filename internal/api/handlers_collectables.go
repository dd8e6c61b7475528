package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fTr0ut/shelvesai/internal/api/respond"
	"github.com/fTr0ut/shelvesai/internal/collectables"
	"github.com/fTr0ut/shelvesai/internal/match"
	"github.com/fTr0ut/shelvesai/internal/model"
)

type CollectableHandler struct {
	svc       *collectables.Service
	matcher   *match.Matcher
	threshold float64
}

func NewCollectableHandler(svc *collectables.Service, matcher *match.Matcher, threshold float64) *CollectableHandler {
	return &CollectableHandler{svc: svc, matcher: matcher, threshold: threshold}
}

func (h *CollectableHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var in model.Collectable
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	out, created, err := h.svc.Upsert(r.Context(), &in)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond.WriteJSON(w, status, out)
}

func (h *CollectableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["collectableId"], 10, 64)
	if err != nil {
		respond.WriteBadRequest(w, "collectableId must be numeric")
		return
	}
	out, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "collectable not found")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Matches scores stored collectables against query parameters, for the
// "is this a duplicate?" review flow.
func (h *CollectableHandler) Matches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := q.Get("title")
	if title == "" {
		respond.WriteBadRequest(w, "title is required")
		return
	}
	threshold := h.threshold
	if raw := q.Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			respond.WriteBadRequest(w, "threshold must be a number in [0,1]")
			return
		}
		threshold = v
	}
	out, err := h.matcher.Match(r.Context(), title, q.Get("creator"), q.Get("kind"), threshold)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"candidates": out, "count": len(out)})
}

// AddFuzzyFingerprint registers an alias fingerprint after a confirmed match.
func (h *CollectableHandler) AddFuzzyFingerprint(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["collectableId"], 10, 64)
	if err != nil {
		respond.WriteBadRequest(w, "collectableId must be numeric")
		return
	}
	var in struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.svc.AddFuzzyFingerprint(r.Context(), id, in.Fingerprint); err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			respond.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrNotFound):
			respond.WriteNotFound(w, "collectable not found")
		default:
			respond.WriteInternalError(w, err.Error())
		}
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
