package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkrivosheev/kp-builder/internal/repository"
)

// ClientHandler handles client directory HTTP requests
type ClientHandler struct {
	repo           repository.ClientRepository
	checklists     repository.EventDetailsRepository
	questionnaires repository.EventDetailsRepository
	logger         *slog.Logger
}

// NewClientHandler creates a new client handler
func NewClientHandler(repo repository.ClientRepository, checklists, questionnaires repository.EventDetailsRepository, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{
		repo:           repo,
		checklists:     checklists,
		questionnaires: questionnaires,
		logger:         logger,
	}
}

// ListClients handles GET /api/client
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.repo.GetAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list clients", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, clients)
}

// GetClient handles GET /api/client/{clientId}
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	client, err := h.repo.GetByID(r.Context(), clientID)
	if err != nil {
		if err == repository.ErrClientNotFound {
			writeError(w, http.StatusNotFound, "Client not found")
			return
		}
		h.logger.Error("failed to get client", "clientId", clientID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, client)
}

// GetClientEventDetails handles GET /api/client/{clientId}/event-details.
// The checklist entry wins over the questionnaire when both exist.
func (h *ClientHandler) GetClientEventDetails(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	details, err := h.checklists.ForClient(r.Context(), clientID)
	if err == nil && details != nil {
		writeJSON(w, http.StatusOK, details)
		return
	}

	details, err = h.questionnaires.ForClient(r.Context(), clientID)
	if err != nil || details == nil {
		writeError(w, http.StatusNotFound, "Event details not found")
		return
	}

	writeJSON(w, http.StatusOK, details)
}
