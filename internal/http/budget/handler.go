package budget

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tmendes/pouch/internal/ledger"
	"github.com/tmendes/pouch/internal/resolver"
)

type Handler struct {
	svc *resolver.Service
}

func NewHandler(svc *resolver.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}/balances", h.balances)
}

type balancesResponse struct {
	BudgetID  uuid.UUID          `json:"budget_id"`
	Available decimal.Decimal    `json:"available_amount"`
	Envelopes []envelopeResponse `json:"envelopes"`
	AsOf      time.Time          `json:"as_of"`
}

type envelopeResponse struct {
	ID      uuid.UUID           `json:"id"`
	Name    string              `json:"name"`
	Kind    ledger.EnvelopeKind `json:"kind"`
	Balance decimal.Decimal     `json:"current_balance"`
	Target  *decimal.Decimal    `json:"target_amount,omitempty"`
	Active  bool                `json:"is_active"`
}

func (h *Handler) balances(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Balances(r.Context(), id)
	if err != nil {
		if errors.Is(err, resolver.ErrBudgetNotFound) {
			http.Error(w, "budget not found", http.StatusNotFound)
			return
		}

		slog.Error("reading balances failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	resp := balancesResponse{
		BudgetID:  b.BudgetID,
		Available: b.Available,
		Envelopes: make([]envelopeResponse, len(b.Envelopes)),
		AsOf:      time.Now().UTC(),
	}

	for i, e := range b.Envelopes {
		resp.Envelopes[i] = envelopeResponse{
			ID:      e.ID,
			Name:    e.Name,
			Kind:    e.Kind,
			Balance: e.Balance,
			Target:  e.Target,
			Active:  e.Active,
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
