package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkrivosheev/kp-builder/internal/repository"
	"github.com/mkrivosheev/kp-builder/internal/service"
)

// DishHandler handles dish catalog HTTP requests
type DishHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewDishHandler creates a new dish handler
func NewDishHandler(service *service.CatalogService, logger *slog.Logger) *DishHandler {
	return &DishHandler{
		service: service,
		logger:  logger,
	}
}

// ListDishes handles GET /api/dish
func (h *DishHandler) ListDishes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dishes, err := h.service.ListDishes(ctx)
	if err != nil {
		h.logger.Error("failed to list dishes", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, dishes)
}

// GetDish handles GET /api/dish/{dishId}
func (h *DishHandler) GetDish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dishID, err := strconv.ParseInt(chi.URLParam(r, "dishId"), 10, 64)
	if err != nil {
		h.logger.Warn("invalid dish ID format", "dishId", chi.URLParam(r, "dishId"), "error", err)
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	dish, err := h.service.GetDish(ctx, dishID)
	if err != nil {
		if err == repository.ErrDishNotFound {
			writeError(w, http.StatusNotFound, "Dish not found")
			return
		}
		h.logger.Error("failed to get dish", "dishId", dishID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, dish)
}
