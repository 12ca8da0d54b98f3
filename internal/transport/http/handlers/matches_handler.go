package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pawmatch/backend/internal/domain/model"
	authsvc "github.com/pawmatch/backend/internal/services/auth"
	"github.com/pawmatch/backend/internal/services/candidates"
	httperrors "github.com/pawmatch/backend/internal/transport/http/errors"
)

type MatchLister interface {
	ListMatches(ctx context.Context, viewer candidates.Viewer, limit int) ([]model.MatchRecord, error)
}

type MatchesHandler struct {
	sessions SessionProvider
	matches  MatchLister
}

func NewMatchesHandler(sessions SessionProvider, matches MatchLister) *MatchesHandler {
	return &MatchesHandler{sessions: sessions, matches: matches}
}

func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.sessions == nil || h.matches == nil {
		writeInternal(w, "MATCHES_UNAVAILABLE", "matches are unavailable")
		return
	}

	eng, err := h.sessions.Engine(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "SESSION_START_FAILED", "failed to start discovery session")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := h.matches.ListMatches(r.Context(), eng.Viewer(), limit)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list matches")
		return
	}
	if items == nil {
		items = []model.MatchRecord{}
	}

	httperrors.Write(w, http.StatusOK, struct {
		Matches []model.MatchRecord `json:"matches"`
	}{Matches: items})
}
