package handlers

import (
	"log/slog"
	"net/http"

	"github.com/mkrivosheev/kp-builder/internal/repository"
)

// BenefitHandler handles benefit reference-data HTTP requests
type BenefitHandler struct {
	repo   repository.BenefitRepository
	logger *slog.Logger
}

// NewBenefitHandler creates a new benefit handler
func NewBenefitHandler(repo repository.BenefitRepository, logger *slog.Logger) *BenefitHandler {
	return &BenefitHandler{
		repo:   repo,
		logger: logger,
	}
}

// ListBenefits handles GET /api/benefit
func (h *BenefitHandler) ListBenefits(w http.ResponseWriter, r *http.Request) {
	benefits, err := h.repo.GetActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list benefits", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, benefits)
}
