package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bloglist/apiserver/internal/services"
)

// ResetHandler wipes all state for end-to-end test runs.
type ResetHandler struct {
	resetService *services.ResetService
	logger       logrus.FieldLogger
}

func NewResetHandler(resetService *services.ResetService, logger logrus.FieldLogger) *ResetHandler {
	return &ResetHandler{resetService: resetService, logger: logger}
}

func (h *ResetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.resetService.Reset(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to reset state")
		return
	}
	h.logger.Warn("all state reset")
	w.WriteHeader(http.StatusNoContent)
}
