package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/auth"
	"github.com/sakif/videotube/internal/model"
	"github.com/sakif/videotube/internal/service"
)

type EngagementHandler struct {
	svc    *service.EngagementService
	logger logrus.FieldLogger
}

func NewEngagementHandler(svc *service.EngagementService, logger logrus.FieldLogger) *EngagementHandler {
	return &EngagementHandler{svc: svc, logger: logger}
}

// HandleToggleLike serves POST /api/likes/toggle/{kind}/{id}, where kind is
// video, comment or tweet.
func (h *EngagementHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	target := model.LikeTarget{
		Kind: model.TargetKind(chi.URLParam(r, "kind")),
		ID:   chi.URLParam(r, "id"),
	}

	liked, err := h.svc.ToggleLike(r.Context(), userID, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// HandleToggleSubscription serves POST /api/subscriptions/toggle/{channelId}.
func (h *EngagementHandler) HandleToggleSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	subscribed, err := h.svc.ToggleSubscription(r.Context(), userID, chi.URLParam(r, "channelId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": subscribed})
}
