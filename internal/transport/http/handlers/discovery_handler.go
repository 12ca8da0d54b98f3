package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pawmatch/backend/internal/domain/enums"
	"github.com/pawmatch/backend/internal/domain/model"
	pgrepo "github.com/pawmatch/backend/internal/repo/postgres"
	authsvc "github.com/pawmatch/backend/internal/services/auth"
	discoverysvc "github.com/pawmatch/backend/internal/services/discovery"
	"github.com/pawmatch/backend/internal/transport/http/dto"
	httperrors "github.com/pawmatch/backend/internal/transport/http/errors"
)

// SessionProvider hands out the per-identity discovery engine.
type SessionProvider interface {
	Engine(ctx context.Context, userID int64) (*discoverysvc.Engine, error)
	End(userID int64) bool
}

type DiscoveryHandler struct {
	sessions SessionProvider
}

func NewDiscoveryHandler(sessions SessionProvider) *DiscoveryHandler {
	return &DiscoveryHandler{sessions: sessions}
}

func (h *DiscoveryHandler) engine(w http.ResponseWriter, r *http.Request) (*discoverysvc.Engine, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return nil, false
	}
	if h.sessions == nil {
		writeInternal(w, "DISCOVERY_UNAVAILABLE", "discovery is unavailable")
		return nil, false
	}

	eng, err := h.sessions.Engine(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrViewerPetNotFound) {
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "PROFILE_NOT_FOUND",
				Message: "create a pet profile before browsing",
			})
			return nil, false
		}
		writeInternal(w, "SESSION_START_FAILED", "failed to start discovery session")
		return nil, false
	}

	return eng, true
}

func (h *DiscoveryHandler) State(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	httperrors.Write(w, http.StatusOK, eng.Snapshot())
}

func (h *DiscoveryHandler) Decide(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req dto.DecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	kind := enums.DecisionKind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	res, err := eng.Decide(r.Context(), kind)
	if err != nil {
		h.writeDecisionError(w, eng, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DecisionResponse{
		DecisionID: res.Decision.ID,
		Kind:       string(res.Decision.Kind),
		ExitMS:     res.ExitDuration.Milliseconds(),
	})
}

func (h *DiscoveryHandler) Gesture(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req dto.GestureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	phase := enums.GesturePhase(strings.ToLower(strings.TrimSpace(req.Phase)))
	if phase != enums.GestureActive && phase != enums.GestureReleased {
		writeBadRequest(w, "VALIDATION_ERROR", "phase must be active or released")
		return
	}

	sample := model.GestureSample{
		DX:         req.DX,
		DY:         req.DY,
		VelocityX:  req.VelocityX,
		VelocityY:  req.VelocityY,
		DirectionX: req.DirectionX,
		DirectionY: req.DirectionY,
		Phase:      phase,
		Elapsed:    time.Duration(req.ElapsedMS) * time.Millisecond,
	}

	res, err := eng.HandleGesture(r.Context(), sample)
	if err != nil {
		h.writeDecisionError(w, eng, err)
		return
	}

	resp := dto.GestureResponse{
		Outcome:      string(res.Outcome),
		AnimationMS:  res.AnimationDuration.Milliseconds(),
		InspectPetID: res.InspectPetID,
	}
	if res.Decision != nil {
		resp.Decision = &dto.DecisionResponse{
			DecisionID: res.Decision.ID,
			Kind:       string(res.Decision.Kind),
			ExitMS:     res.AnimationDuration.Milliseconds(),
		}
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *DiscoveryHandler) Rewind(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	res, err := eng.Rewind(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, discoverysvc.ErrNothingToRewind):
			writeConflict(w, "NOTHING_TO_REWIND", "decision history is empty")
		case errors.Is(err, discoverysvc.ErrQuotaExceeded):
			h.writeQuotaExceeded(w, eng, enums.QuotaRewind)
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to rewind")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RewindResponse{
		DecisionID:    res.Decision.ID,
		RestoredPetID: res.Restored.PetID,
		RewindsLeft:   eng.Snapshot().RewindsLeft,
	})
}

func (h *DiscoveryHandler) Filters(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req dto.FiltersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.MaxDistanceMiles < 0 || req.AgeMin < 0 || req.AgeMax < 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "filter bounds must not be negative")
		return
	}

	applied, err := eng.ApplyFilters(r.Context(), model.Filters{
		Breed:            req.Breed,
		MaxDistanceMiles: req.MaxDistanceMiles,
		AgeMin:           req.AgeMin,
		AgeMax:           req.AgeMax,
		Gender:           req.Gender,
		VerifiedOnly:     req.VerifiedOnly,
	})
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to apply filters")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.FiltersResponse{
		Applied:  applied,
		Deferred: !applied,
	})
}

func (h *DiscoveryHandler) Quota(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	httperrors.Write(w, http.StatusOK, eng.QuotaReport())
}

func (h *DiscoveryHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	ended := h.sessions != nil && h.sessions.End(identity.UserID)
	httperrors.Write(w, http.StatusOK, struct {
		Ended bool `json:"ended"`
	}{Ended: ended})
}

func (h *DiscoveryHandler) writeDecisionError(w http.ResponseWriter, eng *discoverysvc.Engine, err error) {
	switch {
	case errors.Is(err, discoverysvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid decision request")
	case errors.Is(err, discoverysvc.ErrNoCandidate):
		writeConflict(w, "NO_ACTIVE_CANDIDATE", "the candidate queue is exhausted")
	case errors.Is(err, discoverysvc.ErrQuotaExceeded):
		h.writeQuotaExceeded(w, eng, enums.QuotaSuperLike)
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process decision")
	}
}

func (h *DiscoveryHandler) writeQuotaExceeded(w http.ResponseWriter, eng *discoverysvc.Engine, kind enums.QuotaKind) {
	report := eng.QuotaReport()

	code := "SUPERLIKE_LIMIT_REACHED"
	message := "daily super like limit reached"
	remaining := report.SuperLikesLimit - report.SuperLikesUsed
	if kind == enums.QuotaRewind {
		code = "REWIND_LIMIT_REACHED"
		message = "daily rewind limit reached"
		remaining = report.RewindsLimit - report.RewindsUsed
	}
	if remaining < 0 {
		remaining = 0
	}

	httperrors.Write(w, http.StatusTooManyRequests, httperrors.QuotaError{
		Code:      code,
		Message:   message,
		Remaining: remaining,
		ResetAt:   report.ResetAt,
	})
}
