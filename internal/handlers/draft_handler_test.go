package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrivosheev/kp-builder/internal/builder"
	"github.com/mkrivosheev/kp-builder/internal/draft"
	"github.com/mkrivosheev/kp-builder/internal/repository"
	"github.com/mkrivosheev/kp-builder/pkg/logger"
)

// newDraftRouter wires a DraftHandler over fresh in-memory repositories and
// a temp snapshot store, mounted at the production route layout.
func newDraftRouter(t *testing.T) *chi.Mux {
	t.Helper()

	log := logger.New("error")
	store, err := draft.Open(filepath.Join(t.TempDir(), "drafts.db"), time.Hour, log)
	if err != nil {
		t.Fatalf("draft.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	catalog := repository.NewInMemoryCatalogRepository()
	clients := repository.NewInMemoryClientRepository()
	proposals := repository.NewInMemoryProposalRepository()
	manager := builder.NewManager(store, repository.NewInMemoryBenefitRepository(), clients, catalog, log)

	handler := NewDraftHandler(
		manager,
		catalog,
		repository.NewInMemoryEventDetailsRepository(repository.SeedChecklists()),
		repository.NewInMemoryEventDetailsRepository(repository.SeedQuestionnaires()),
		proposals,
		log,
	)

	r := chi.NewRouter()
	r.Post("/api/draft", handler.OpenDraft)
	r.Route("/api/draft/{draftId}", func(r chi.Router) {
		r.Get("/", handler.GetDraft)
		r.Delete("/", handler.DiscardDraft)
		r.Put("/client", handler.SetClient)
		r.Put("/event", handler.SetEvent)
		r.Put("/guests", handler.SetGuests)
		r.Put("/transport", handler.SetTransport)
		r.Put("/group", handler.SetGroup)
		r.Post("/dish/catalog/{dishId}", handler.ToggleCatalogDish)
		r.Post("/dish/custom", handler.AddCustomDish)
		r.Put("/dish/custom/{dishId}", handler.UpdateCustomDish)
		r.Delete("/dish/{kind}/{dishId}", handler.RemoveDish)
		r.Put("/dish/{kind}/{dishId}/quantity", handler.SetDishQuantity)
		r.Put("/dish/{kind}/{dishId}/price", handler.SetDishPrice)
		r.Put("/dish/{kind}/{dishId}/measure", handler.SetDishMeasure)
		r.Post("/equipment", handler.AddEquipment)
		r.Put("/equipment/{itemId}", handler.UpdateEquipment)
		r.Delete("/equipment/{itemId}", handler.RemoveEquipment)
		r.Put("/loss-charge", handler.SetLossCharge)
		r.Post("/service", handler.AddService)
		r.Put("/service/{itemId}", handler.UpdateService)
		r.Delete("/service/{itemId}", handler.RemoveService)
		r.Post("/format", handler.CreateFormat)
		r.Put("/format/{formatId}", handler.UpdateFormat)
		r.Put("/format/{formatId}/group", handler.SetFormatGroup)
		r.Delete("/format/{formatId}", handler.DeleteFormat)
		r.Post("/format/{formatId}/dish/{kind}/{dishId}", handler.AddFormatDish)
		r.Delete("/format/{formatId}/dish/{kind}/{dishId}", handler.RemoveFormatDish)
		r.Put("/discount", handler.SetDiscount)
		r.Put("/cashback", handler.SetCashback)
		r.Put("/template", handler.SetTemplate)
		r.Put("/delivery", handler.SetDelivery)
		r.Get("/totals", handler.GetTotals)
		r.Post("/step", handler.GoToStep)
		r.Post("/submit", handler.Submit)
	})
	return r
}

func do(t *testing.T, r *chi.Mux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func openDraft(t *testing.T, r *chi.Mux) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/draft", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201 opening draft, got %d: %s", w.Code, w.Body.String())
	}
	state := decodeState(t, w)
	var d struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(state["draft"], &d); err != nil {
		t.Fatalf("failed to decode draft: %v", err)
	}
	if d.ID == "" {
		t.Fatal("expected a generated draft id")
	}
	return d.ID
}

func TestOpenDraft_MintsID(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodGet, "/api/draft/"+id+"/", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestToggleCatalogDish(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodPost, "/api/draft/"+id+"/dish/catalog/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var first struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !first.Selected {
		t.Error("expected dish to be selected on first toggle")
	}

	w = do(t, r, http.MethodPost, "/api/draft/"+id+"/dish/catalog/1", nil)
	var second struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(w.Body).Decode(&second); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if second.Selected {
		t.Error("expected dish to be removed on second toggle")
	}
}

func TestToggleCatalogDish_UnknownDish(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodPost, "/api/draft/"+id+"/dish/catalog/99999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestAddCustomDish_RequiresName(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodPost, "/api/draft/"+id+"/dish/custom", map[string]any{"price": 500})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/draft/"+id+"/dish/custom", map[string]any{"name": "Фирменный торт", "price": 3000})
	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRemoveDish_UnknownKind(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodDelete, "/api/draft/"+id+"/dish/bogus/1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGoToStep_GateViolations(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodPost, "/api/draft/"+id+"/step", map[string]int{"step": 1})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Violations []struct {
			Field string `json:"field"`
		} `json:"violations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Violations) == 0 {
		t.Fatal("expected violations blocking the empty draft")
	}
}

func TestGoToStep_UnknownStep(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodPost, "/api/draft/"+id+"/step", map[string]int{"step": 42})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

// fillDraft drives the draft through the HTTP surface until every forward
// gate passes.
func fillDraft(t *testing.T, r *chi.Mux, id string) {
	t.Helper()
	steps := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPut, "/client", map[string]any{"name": "ООО Ромашка", "email": "events@romashka.ru"}},
		{http.MethodPut, "/event", map[string]any{"date": "2026-09-20", "time": "18:00", "location": "Лофт «Депо»"}},
		{http.MethodPut, "/group", map[string]any{"group": "catering"}},
		{http.MethodPut, "/guests", map[string]any{"guest_count": 40}},
		{http.MethodPost, "/dish/catalog/1", nil},
	}
	for _, s := range steps {
		w := do(t, r, s.method, "/api/draft/"+id+s.path, s.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s %s: expected status 200, got %d: %s", s.method, s.path, w.Code, w.Body.String())
		}
	}
}

func TestSubmitFlow(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)
	fillDraft(t, r, id)

	w := do(t, r, http.MethodPost, "/api/draft/"+id+"/step", map[string]int{"step": 6})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 advancing to last step, got %d: %s", w.Code, w.Body.String())
	}

	// no template chosen yet
	w = do(t, r, http.MethodPost, "/api/draft/"+id+"/submit", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 without a template, got %d", w.Code)
	}

	w = do(t, r, http.MethodPut, "/api/draft/"+id+"/template", map[string]any{"template_id": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 setting template, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/draft/"+id+"/submit", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201 submitting, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Proposal struct {
			ID     int64  `json:"id"`
			Number string `json:"number"`
		} `json:"proposal"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Proposal.ID == 0 || resp.Proposal.Number == "" {
		t.Errorf("expected a stored proposal, got %+v", resp.Proposal)
	}
}

func TestSubmit_RequiresLastStep(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodPost, "/api/draft/"+id+"/submit", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}
}

func TestSetCashback_InsufficientWallet(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	// client 3 has an empty wallet
	w := do(t, r, http.MethodPut, "/api/draft/"+id+"/client", map[string]any{"existing": true, "client_id": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 selecting client, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPost, "/api/draft/"+id+"/dish/catalog/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 selecting dish, got %d", w.Code)
	}

	w = do(t, r, http.MethodPut, "/api/draft/"+id+"/cashback", map[string]any{"benefit_id": 5, "redeem_now": true})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestFormatLifecycle(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodPost, "/api/draft/"+id+"/dish/catalog/2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 selecting dish, got %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/draft/"+id+"/format", map[string]any{"name": "Фуршет", "time_window": "12:00–15:00", "guest_count": 25})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201 creating format, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		FormatID int `json:"format_id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.FormatID == 0 {
		t.Fatal("expected a format id")
	}

	w = do(t, r, http.MethodPost, "/api/draft/"+id+"/format/1/dish/catalog/2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 adding format dish, got %d: %s", w.Code, w.Body.String())
	}

	// dishes outside the ledger are rejected
	w = do(t, r, http.MethodPost, "/api/draft/"+id+"/format/1/dish/catalog/3", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422 for unselected dish, got %d", w.Code)
	}

	w = do(t, r, http.MethodDelete, "/api/draft/"+id+"/format/1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 deleting format, got %d", w.Code)
	}

	w = do(t, r, http.MethodDelete, "/api/draft/"+id+"/format/1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 deleting missing format, got %d", w.Code)
	}
}

func TestGetTotals(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)
	fillDraft(t, r, id)

	w := do(t, r, http.MethodGet, "/api/draft/"+id+"/totals", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var totals struct {
		Total float64 `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&totals); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if totals.Total <= 0 {
		t.Errorf("expected a positive total, got %v", totals.Total)
	}
}

func TestDiscardDraft(t *testing.T) {
	r := newDraftRouter(t)
	id := openDraft(t, r)

	w := do(t, r, http.MethodDelete, "/api/draft/"+id+"/", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}

	// a fresh session replaces the discarded one
	w = do(t, r, http.MethodGet, "/api/draft/"+id+"/", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 re-opening, got %d", w.Code)
	}
}
