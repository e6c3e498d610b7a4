package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkrivosheev/kp-builder/internal/repository"
	"github.com/mkrivosheev/kp-builder/internal/service"
)

// ProposalHandler handles submitted proposal HTTP requests
type ProposalHandler struct {
	repo     repository.ProposalRepository
	renderer *service.RenderService
	logger   *slog.Logger
}

// NewProposalHandler creates a new proposal handler
func NewProposalHandler(repo repository.ProposalRepository, renderer *service.RenderService, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{
		repo:     repo,
		renderer: renderer,
		logger:   logger,
	}
}

// ListProposals handles GET /api/proposal
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.repo.GetAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list proposals", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, proposals)
}

// GetProposal handles GET /api/proposal/{proposalId}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	proposalID, err := strconv.ParseInt(chi.URLParam(r, "proposalId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	proposal, err := h.repo.GetByID(r.Context(), proposalID)
	if err != nil {
		if err == repository.ErrProposalNotFound {
			writeError(w, http.StatusNotFound, "Proposal not found")
			return
		}
		h.logger.Error("failed to get proposal", "proposalId", proposalID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, proposal)
}

type renderRequest struct {
	TemplateID int64 `json:"template_id"`
}

// RenderProposal handles POST /api/proposal/{proposalId}/render. The
// template id in the body overrides the one stored on the proposal; zero
// means "use the stored one".
func (h *ProposalHandler) RenderProposal(w http.ResponseWriter, r *http.Request) {
	proposalID, err := strconv.ParseInt(chi.URLParam(r, "proposalId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	var req renderRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	doc, err := h.renderer.Generate(r.Context(), proposalID, req.TemplateID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProposalNotFound):
			writeError(w, http.StatusNotFound, "Proposal not found")
		case errors.Is(err, repository.ErrTemplateNotFound):
			writeError(w, http.StatusNotFound, "Template not found")
		default:
			h.logger.Error("failed to render proposal", "proposalId", proposalID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		h.logger.Error("failed to write rendered proposal", "proposalId", proposalID, "error", err)
	}
}
