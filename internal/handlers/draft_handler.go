package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkrivosheev/kp-builder/internal/builder"
	"github.com/mkrivosheev/kp-builder/internal/formats"
	"github.com/mkrivosheev/kp-builder/internal/ledger"
	"github.com/mkrivosheev/kp-builder/internal/pricing"
	"github.com/mkrivosheev/kp-builder/internal/repository"
	"github.com/mkrivosheev/kp-builder/internal/steps"
	"github.com/mkrivosheev/kp-builder/internal/units"
)

// DraftHandler exposes the proposal builder over HTTP. Every route under
// /api/draft/{draftId} resolves the session through the manager, applies one
// builder command and returns the refreshed draft state.
type DraftHandler struct {
	manager        *builder.Manager
	catalog        repository.CatalogRepository
	checklists     repository.EventDetailsRepository
	questionnaires repository.EventDetailsRepository
	proposals      repository.ProposalRepository
	logger         *slog.Logger
}

// NewDraftHandler creates a new draft handler
func NewDraftHandler(manager *builder.Manager, catalog repository.CatalogRepository, checklists, questionnaires repository.EventDetailsRepository, proposals repository.ProposalRepository, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{
		manager:        manager,
		catalog:        catalog,
		checklists:     checklists,
		questionnaires: questionnaires,
		proposals:      proposals,
		logger:         logger,
	}
}

// draftState is the response body shared by every mutating draft route.
type draftState struct {
	Draft  *builder.Draft `json:"draft"`
	Step   string         `json:"step"`
	Totals pricing.Totals `json:"totals"`
}

func (h *DraftHandler) state(b *builder.Builder) draftState {
	return draftState{
		Draft:  b.Draft(),
		Step:   b.CurrentStep().String(),
		Totals: b.Totals(),
	}
}

// session resolves the builder session for the draftId path parameter,
// restoring a persisted snapshot when the session is not in memory yet.
func (h *DraftHandler) session(w http.ResponseWriter, r *http.Request) (*builder.Builder, bool) {
	id := chi.URLParam(r, "draftId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return nil, false
	}

	b, err := h.manager.Open(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to open draft session", "draftId", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	return b, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func parseDishKey(r *http.Request) (ledger.DishKey, error) {
	kind := ledger.DishKind(chi.URLParam(r, "kind"))
	if kind != ledger.KindCatalog && kind != ledger.KindCustom {
		return ledger.DishKey{}, errors.New("unknown dish kind")
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "dishId"), 10, 64)
	if err != nil {
		return ledger.DishKey{}, err
	}
	return ledger.DishKey{Kind: kind, ID: id}, nil
}

type openDraftRequest struct {
	DraftID    string `json:"draft_id,omitempty"`
	ProposalID int64  `json:"proposal_id,omitempty"`
}

// OpenDraft handles POST /api/draft. With a proposal_id it hydrates an edit
// session from the stored proposal; otherwise it opens (or creates) the
// session for draft_id, minting a fresh id when none is given.
func (h *DraftHandler) OpenDraft(w http.ResponseWriter, r *http.Request) {
	var req openDraftRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	var (
		b   *builder.Builder
		err error
	)
	if req.ProposalID != 0 {
		b, err = h.manager.OpenForProposal(r.Context(), h.proposals, req.ProposalID)
	} else {
		b, err = h.manager.Open(r.Context(), req.DraftID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrProposalNotFound) {
			writeError(w, http.StatusNotFound, "Proposal not found")
			return
		}
		h.logger.Error("failed to open draft", "proposalId", req.ProposalID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, h.state(b))
}

// GetDraft handles GET /api/draft/{draftId}
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

// DiscardDraft handles DELETE /api/draft/{draftId}
func (h *DraftHandler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "draftId")
	if err := h.manager.Discard(id); err != nil {
		h.logger.Error("failed to discard draft", "draftId", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type clientRequest struct {
	Existing bool   `json:"existing"`
	ClientID int64  `json:"client_id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// SetClient handles PUT /api/draft/{draftId}/client
func (h *DraftHandler) SetClient(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req clientRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Existing && req.ClientID != 0 {
		if err := b.SelectClient(r.Context(), req.ClientID, h.checklists, h.questionnaires); err != nil {
			if errors.Is(err, repository.ErrClientNotFound) {
				writeError(w, http.StatusNotFound, "Client not found")
				return
			}
			h.logger.Error("failed to select client", "clientId", req.ClientID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	} else {
		b.SetClientInfo(req.Existing, req.Name, req.Email, req.Phone)
	}

	writeJSON(w, http.StatusOK, h.state(b))
}

type eventRequest struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Coordinator string `json:"coordinator"`
}

// SetEvent handles PUT /api/draft/{draftId}/event
func (h *DraftHandler) SetEvent(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.SetEventInfo(req.Date, req.Time, req.Location, req.Coordinator)
	writeJSON(w, http.StatusOK, h.state(b))
}

type guestsRequest struct {
	Guests int `json:"guest_count"`
}

// SetGuests handles PUT /api/draft/{draftId}/guests
func (h *DraftHandler) SetGuests(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req guestsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.SetGuests(req.Guests)
	writeJSON(w, http.StatusOK, h.state(b))
}

type transportRequest struct {
	Cost float64 `json:"cost"`
}

// SetTransport handles PUT /api/draft/{draftId}/transport
func (h *DraftHandler) SetTransport(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req transportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.SetTransport(req.Cost)
	writeJSON(w, http.StatusOK, h.state(b))
}

type groupRequest struct {
	Group formats.ServiceGroup `json:"group"`
}

// SetGroup handles PUT /api/draft/{draftId}/group
func (h *DraftHandler) SetGroup(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req groupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := b.SetGroup(req.Group); err != nil {
		writeError(w, http.StatusBadRequest, "Unknown service group")
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

type toggleDishResponse struct {
	Selected bool `json:"selected"`
	draftState
}

// ToggleCatalogDish handles POST /api/draft/{draftId}/dish/catalog/{dishId}.
// Selecting an already selected dish removes it.
func (h *DraftHandler) ToggleCatalogDish(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	dishID, err := strconv.ParseInt(chi.URLParam(r, "dishId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	dish, err := h.catalog.GetByID(r.Context(), dishID)
	if err != nil {
		if errors.Is(err, repository.ErrDishNotFound) {
			writeError(w, http.StatusNotFound, "Dish not found")
			return
		}
		h.logger.Error("failed to load dish", "dishId", dishID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	selected := b.ToggleDish(*dish)
	writeJSON(w, http.StatusOK, toggleDishResponse{Selected: selected, draftState: h.state(b)})
}

// RemoveDish handles DELETE /api/draft/{draftId}/dish/{kind}/{dishId}
func (h *DraftHandler) RemoveDish(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	key, err := parseDishKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	b.RemoveDish(key)
	writeJSON(w, http.StatusOK, h.state(b))
}

type customDishRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Measure     string     `json:"measure,omitempty"`
	Unit        units.Unit `json:"unit,omitempty"`
	Price       float64    `json:"price"`
	Category    string     `json:"category,omitempty"`
	Subcategory string     `json:"subcategory,omitempty"`
	Quantity    int        `json:"quantity,omitempty"`
}

func (req customDishRequest) dish() ledger.Dish {
	return ledger.Dish{
		Name:        req.Name,
		Description: req.Description,
		Measure:     req.Measure,
		Unit:        req.Unit,
		Price:       req.Price,
		Category:    req.Category,
		Subcategory: req.Subcategory,
	}
}

// AddCustomDish handles POST /api/draft/{draftId}/dish/custom
func (h *DraftHandler) AddCustomDish(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req customDishRequest
	if !decodeBody(w, r, &req) {
		return
	}

	key, err := b.AddCustomDish(req.dish(), req.Quantity)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Key ledger.DishKey `json:"key"`
		draftState
	}{Key: key, draftState: h.state(b)})
}

// UpdateCustomDish handles PUT /api/draft/{draftId}/dish/custom/{dishId}
func (h *DraftHandler) UpdateCustomDish(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	dishID, err := strconv.ParseInt(chi.URLParam(r, "dishId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	var req customDishRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := b.UpdateCustomDish(dishID, req.dish()); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetDishQuantity handles PUT /api/draft/{draftId}/dish/{kind}/{dishId}/quantity
func (h *DraftHandler) SetDishQuantity(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	key, err := parseDishKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	var req quantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := b.SetDishQuantity(key, req.Quantity); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

type priceOverrideRequest struct {
	Price *float64 `json:"price"` // null clears the override
}

// SetDishPrice handles PUT /api/draft/{draftId}/dish/{kind}/{dishId}/price
func (h *DraftHandler) SetDishPrice(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	key, err := parseDishKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	var req priceOverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := b.SetPriceOverride(key, req.Price); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

type measureOverrideRequest struct {
	Measure *string `json:"measure"` // null clears the override
}

// SetDishMeasure handles PUT /api/draft/{draftId}/dish/{kind}/{dishId}/measure
func (h *DraftHandler) SetDishMeasure(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	key, err := parseDishKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	var req measureOverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := b.SetMeasureOverride(key, req.Measure); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

type lineItemRequest struct {
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Subcategory string  `json:"subcategory,omitempty"`
}

func (req lineItemRequest) item() ledger.LineItem {
	return ledger.LineItem{
		Name:        req.Name,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Subcategory: req.Subcategory,
	}
}

// AddEquipment handles POST /api/draft/{draftId}/equipment
func (h *DraftHandler) AddEquipment(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req lineItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := b.AddEquipment(req.item())
	writeJSON(w, http.StatusCreated, struct {
		ID int64 `json:"id"`
		draftState
	}{ID: id, draftState: h.state(b)})
}

// UpdateEquipment handles PUT /api/draft/{draftId}/equipment/{itemId}
func (h *DraftHandler) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	h.updateLineItem(w, r, func(b *builder.Builder, id int64, item ledger.LineItem) error {
		return b.UpdateEquipment(id, item)
	})
}

// RemoveEquipment handles DELETE /api/draft/{draftId}/equipment/{itemId}
func (h *DraftHandler) RemoveEquipment(w http.ResponseWriter, r *http.Request) {
	h.removeLineItem(w, r, func(b *builder.Builder, id int64) {
		b.RemoveEquipment(id)
	})
}

type lossChargeRequest struct {
	Charge float64 `json:"charge"`
}

// SetLossCharge handles PUT /api/draft/{draftId}/loss-charge
func (h *DraftHandler) SetLossCharge(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req lossChargeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.SetLossCharge(req.Charge)
	writeJSON(w, http.StatusOK, h.state(b))
}

// AddService handles POST /api/draft/{draftId}/service
func (h *DraftHandler) AddService(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req lineItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := b.AddService(req.item())
	writeJSON(w, http.StatusCreated, struct {
		ID int64 `json:"id"`
		draftState
	}{ID: id, draftState: h.state(b)})
}

// UpdateService handles PUT /api/draft/{draftId}/service/{itemId}
func (h *DraftHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	h.updateLineItem(w, r, func(b *builder.Builder, id int64, item ledger.LineItem) error {
		return b.UpdateService(id, item)
	})
}

// RemoveService handles DELETE /api/draft/{draftId}/service/{itemId}
func (h *DraftHandler) RemoveService(w http.ResponseWriter, r *http.Request) {
	h.removeLineItem(w, r, func(b *builder.Builder, id int64) {
		b.RemoveService(id)
	})
}

func (h *DraftHandler) updateLineItem(w http.ResponseWriter, r *http.Request, apply func(*builder.Builder, int64, ledger.LineItem) error) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	var req lineItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := apply(b, itemID, req.item()); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

func (h *DraftHandler) removeLineItem(w http.ResponseWriter, r *http.Request, apply func(*builder.Builder, int64)) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	apply(b, itemID)
	writeJSON(w, http.StatusOK, h.state(b))
}

type formatRequest struct {
	Name      string `json:"name"`
	TimeRange string `json:"time_window"`
	Guests    int    `json:"guest_count"`
}

// CreateFormat handles POST /api/draft/{draftId}/format
func (h *DraftHandler) CreateFormat(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req formatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	f := b.CreateFormat(req.Name)
	if req.TimeRange != "" || req.Guests != 0 {
		if err := b.UpdateFormat(f.ID, req.Name, req.TimeRange, req.Guests); err != nil {
			h.writeFormatError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, struct {
		FormatID int `json:"format_id"`
		draftState
	}{FormatID: f.ID, draftState: h.state(b)})
}

// UpdateFormat handles PUT /api/draft/{draftId}/format/{formatId}
func (h *DraftHandler) UpdateFormat(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	formatID, err := strconv.Atoi(chi.URLParam(r, "formatId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	var req formatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := b.UpdateFormat(formatID, req.Name, req.TimeRange, req.Guests); err != nil {
		h.writeFormatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

// SetFormatGroup handles PUT /api/draft/{draftId}/format/{formatId}/group
func (h *DraftHandler) SetFormatGroup(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	formatID, err := strconv.Atoi(chi.URLParam(r, "formatId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	var req groupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := b.SetFormatGroup(formatID, req.Group); err != nil {
		if errors.Is(err, builder.ErrUnknownGroup) {
			writeError(w, http.StatusBadRequest, "Unknown service group")
			return
		}
		h.writeFormatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

// DeleteFormat handles DELETE /api/draft/{draftId}/format/{formatId}
func (h *DraftHandler) DeleteFormat(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	formatID, err := strconv.Atoi(chi.URLParam(r, "formatId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	if err := b.DeleteFormat(formatID); err != nil {
		h.writeFormatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

// AddFormatDish handles POST /api/draft/{draftId}/format/{formatId}/dish/{kind}/{dishId}
func (h *DraftHandler) AddFormatDish(w http.ResponseWriter, r *http.Request) {
	h.formatDish(w, r, func(b *builder.Builder, formatID int, key ledger.DishKey) error {
		return b.AddFormatDish(formatID, key)
	})
}

// RemoveFormatDish handles DELETE /api/draft/{draftId}/format/{formatId}/dish/{kind}/{dishId}
func (h *DraftHandler) RemoveFormatDish(w http.ResponseWriter, r *http.Request) {
	h.formatDish(w, r, func(b *builder.Builder, formatID int, key ledger.DishKey) error {
		return b.RemoveFormatDish(formatID, key)
	})
}

func (h *DraftHandler) formatDish(w http.ResponseWriter, r *http.Request, apply func(*builder.Builder, int, ledger.DishKey) error) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	formatID, err := strconv.Atoi(chi.URLParam(r, "formatId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	key, err := parseDishKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID supplied")
		return
	}

	if err := apply(b, formatID, key); err != nil {
		switch {
		case errors.Is(err, formats.ErrFormatNotFound):
			writeError(w, http.StatusNotFound, "Format not found")
		case errors.Is(err, ledger.ErrDishNotFound):
			writeError(w, http.StatusUnprocessableEntity, "Dish is not selected in this draft")
		default:
			h.logger.Error("format dish command failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

// SetDiscount handles PUT /api/draft/{draftId}/discount
func (h *DraftHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var sel pricing.DiscountSelection
	if !decodeBody(w, r, &sel) {
		return
	}

	b.SetDiscount(sel)
	writeJSON(w, http.StatusOK, h.state(b))
}

// SetCashback handles PUT /api/draft/{draftId}/cashback. Redemption is
// wallet-gated; a rejected selection leaves the draft untouched.
func (h *DraftHandler) SetCashback(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var sel pricing.CashbackSelection
	if !decodeBody(w, r, &sel) {
		return
	}

	if err := b.SetCashback(r.Context(), sel); err != nil {
		switch {
		case errors.Is(err, pricing.ErrInsufficientWallet),
			errors.Is(err, builder.ErrCashbackNotSet),
			errors.Is(err, builder.ErrClientRequired):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, repository.ErrClientNotFound):
			writeError(w, http.StatusNotFound, "Client not found")
		default:
			h.logger.Error("failed to set cashback", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

type templateRequest struct {
	TemplateID int64 `json:"template_id"`
}

// SetTemplate handles PUT /api/draft/{draftId}/template
func (h *DraftHandler) SetTemplate(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req templateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.SetTemplate(req.TemplateID)
	writeJSON(w, http.StatusOK, h.state(b))
}

type deliveryRequest struct {
	SendEmail       bool   `json:"send_email"`
	SendTelegram    bool   `json:"send_telegram"`
	EmailMessage    string `json:"email_message,omitempty"`
	TelegramMessage string `json:"telegram_message,omitempty"`
}

// SetDelivery handles PUT /api/draft/{draftId}/delivery
func (h *DraftHandler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req deliveryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b.SetDelivery(req.SendEmail, req.SendTelegram, req.EmailMessage, req.TelegramMessage)
	writeJSON(w, http.StatusOK, h.state(b))
}

// GetTotals handles GET /api/draft/{draftId}/totals
func (h *DraftHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.Totals())
}

type stepRequest struct {
	Step int `json:"step"`
}

type stepResponse struct {
	Violations []steps.Violation `json:"violations"`
	draftState
}

// GoToStep handles POST /api/draft/{draftId}/step. Forward transitions that
// fail a gate return 422 with the violations and leave the step unchanged.
func (h *DraftHandler) GoToStep(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	var req stepRequest
	if !decodeBody(w, r, &req) {
		return
	}

	target := steps.Step(req.Step)
	if !target.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown step")
		return
	}

	if violations := b.GoToStep(target); len(violations) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, stepResponse{Violations: violations, draftState: h.state(b)})
		return
	}
	writeJSON(w, http.StatusOK, h.state(b))
}

type submitResponse struct {
	Proposal   interface{}       `json:"proposal,omitempty"`
	Violations []steps.Violation `json:"violations,omitempty"`
}

// Submit handles POST /api/draft/{draftId}/submit
func (h *DraftHandler) Submit(w http.ResponseWriter, r *http.Request) {
	b, ok := h.session(w, r)
	if !ok {
		return
	}

	proposal, violations, err := b.Submit(r.Context(), h.proposals)
	if err != nil {
		if errors.Is(err, builder.ErrNotLastStep) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to submit draft", "draftId", b.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(violations) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, submitResponse{Violations: violations})
		return
	}

	h.manager.Close(b.ID())
	writeJSON(w, http.StatusCreated, submitResponse{Proposal: proposal})
}

func (h *DraftHandler) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrDishNotFound), errors.Is(err, ledger.ErrLineItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrNotCustomDish), errors.Is(err, builder.ErrCustomDishName):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("ledger command failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *DraftHandler) writeFormatError(w http.ResponseWriter, err error) {
	if errors.Is(err, formats.ErrFormatNotFound) {
		writeError(w, http.StatusNotFound, "Format not found")
		return
	}
	h.logger.Error("format command failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
