package api

import (
	"net/http"
	"strconv"

	"github.com/fTr0ut/shelvesai/internal/api/respond"
	"github.com/fTr0ut/shelvesai/internal/feed"
	"github.com/fTr0ut/shelvesai/internal/model"
)

type FeedHandler struct {
	composer *feed.Composer
}

func NewFeedHandler(composer *feed.Composer) *FeedHandler {
	return &FeedHandler{composer: composer}
}

func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := model.FeedQuery{
		ViewerID: actorID(r),
		Scope:    model.FeedScope(q.Get("scope")),
	}
	switch query.Scope {
	case "", model.ScopeSelf, model.ScopeFriends, model.ScopeGlobal, model.ScopeAll:
	default:
		respond.WriteBadRequest(w, "unknown scope: "+string(query.Scope))
		return
	}
	if query.Scope == model.ScopeSelf && query.ViewerID == "" {
		respond.WriteBadRequest(w, "scope=self requires X-Actor-Id")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		query.Limit = v
	}
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respond.WriteBadRequest(w, "offset must be a non-negative integer")
			return
		}
		query.Offset = v
	}

	page, err := h.composer.Compose(r.Context(), query)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, page)
}
