package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/fTr0ut/shelvesai/internal/api/respond"
	"github.com/fTr0ut/shelvesai/internal/model"
	"github.com/fTr0ut/shelvesai/internal/store"
)

type SocialHandler struct {
	st store.Store
}

func NewSocialHandler(st store.Store) *SocialHandler { return &SocialHandler{st: st} }

func (h *SocialHandler) Like(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respond.WriteError(w, http.StatusUnauthorized, "X-Actor-Id required")
		return
	}
	aggregateID := mux.Vars(r)["aggregateId"]
	if err := h.st.Social().Like(r.Context(), aggregateID, actor); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "aggregate not found")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "liked"})
}

func (h *SocialHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respond.WriteError(w, http.StatusUnauthorized, "X-Actor-Id required")
		return
	}
	aggregateID := mux.Vars(r)["aggregateId"]
	if err := h.st.Social().Unlike(r.Context(), aggregateID, actor); err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "unliked"})
}

func (h *SocialHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respond.WriteError(w, http.StatusUnauthorized, "X-Actor-Id required")
		return
	}
	var in struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if strings.TrimSpace(in.Body) == "" {
		respond.WriteBadRequest(w, "comment body must not be empty")
		return
	}
	out, err := h.st.Social().AddComment(r.Context(), &model.Comment{
		AggregateID: mux.Vars(r)["aggregateId"],
		OwnerID:     actor,
		Body:        in.Body,
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "aggregate not found")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

func (h *SocialHandler) UpsertFriendship(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		respond.WriteError(w, http.StatusUnauthorized, "X-Actor-Id required")
		return
	}
	var in struct {
		FriendID string `json:"friendId"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if in.FriendID == "" || in.FriendID == actor {
		respond.WriteBadRequest(w, "friendId must name another user")
		return
	}
	switch in.Status {
	case model.FriendshipPending, model.FriendshipAccepted:
	default:
		respond.WriteBadRequest(w, "status must be pending or accepted")
		return
	}
	err := h.st.Friends().Upsert(r.Context(), &model.Friendship{
		OwnerID:  actor,
		FriendID: in.FriendID,
		Status:   in.Status,
	})
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": in.Status})
}
