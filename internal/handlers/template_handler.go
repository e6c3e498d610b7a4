package handlers

import (
	"log/slog"
	"net/http"

	"github.com/mkrivosheev/kp-builder/internal/repository"
)

// TemplateHandler handles document template HTTP requests
type TemplateHandler struct {
	repo   repository.TemplateRepository
	logger *slog.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(repo repository.TemplateRepository, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{
		repo:   repo,
		logger: logger,
	}
}

// ListTemplates handles GET /api/template
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.repo.GetAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, templates)
}
