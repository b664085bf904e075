package ledgertx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tmendes/pouch/internal/http/auth"
	"github.com/tmendes/pouch/internal/ledger"
)

type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.amend)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/restore", h.restore)
	r.Get("/{id}/events", h.events)
}

type createTransactionRequest struct {
	BudgetID       uuid.UUID       `json:"budget_id"`
	Kind           ledger.Kind     `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	FromEnvelopeID *uuid.UUID      `json:"from_envelope_id"`
	ToEnvelopeID   *uuid.UUID      `json:"to_envelope_id"`
	PayeeID        *uuid.UUID      `json:"payee_id"`
	IncomeSourceID *uuid.UUID      `json:"income_source_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := h.svc.Create(r.Context(), actor, ledger.Draft{
		BudgetID:       req.BudgetID,
		Kind:           req.Kind,
		Amount:         req.Amount,
		Date:           req.Date,
		Description:    req.Description,
		FromEnvelopeID: req.FromEnvelopeID,
		ToEnvelopeID:   req.ToEnvelopeID,
		PayeeID:        req.PayeeID,
		IncomeSourceID: req.IncomeSourceID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	budgetID, err := uuid.Parse(r.URL.Query().Get("budget_id"))
	if err != nil {
		http.Error(w, "budget_id is required", http.StatusBadRequest)
		return
	}

	filter := ledger.ListFilter{BudgetID: budgetID}

	if s := r.URL.Query().Get("kind"); s != "" {
		k := ledger.Kind(s)
		filter.Kind = &k
	}

	if s := r.URL.Query().Get("envelope_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.EnvelopeID = &id
		}
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.StartDate = &t
		}
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.EndDate = &t
		}
	}

	filter.IncludeDeleted = r.URL.Query().Get("include_deleted") == "true"

	txs, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponseList(txs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(t))
}

type amendTransactionRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	FromEnvelopeID *uuid.UUID      `json:"from_envelope_id"`
	ToEnvelopeID   *uuid.UUID      `json:"to_envelope_id"`
	PayeeID        *uuid.UUID      `json:"payee_id"`
	IncomeSourceID *uuid.UUID      `json:"income_source_id"`
}

func (h *Handler) amend(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req amendTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := h.svc.Amend(r.Context(), actor, id, ledger.AmendParams{
		Amount:         req.Amount,
		Date:           req.Date,
		Description:    req.Description,
		FromEnvelopeID: req.FromEnvelopeID,
		ToEnvelopeID:   req.ToEnvelopeID,
		PayeeID:        req.PayeeID,
		IncomeSourceID: req.IncomeSourceID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.SoftDelete(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Restore(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	events, err := h.svc.Events(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponseList(events))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto status codes. Validation errors carry
// their violations so the caller can correct the request.
func writeError(w http.ResponseWriter, err error) {
	var vErr *ledger.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      vErr.Error(),
			Violations: vErr.Violations,
		})

		return
	}

	switch {
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, "transaction not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrUnauthorized):
		http.Error(w, "not authorized for this transaction", http.StatusForbidden)
	case errors.Is(err, ledger.ErrAlreadyDeleted), errors.Is(err, ledger.ErrNotDeleted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrAvailableNegative):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrConflict):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "conflict, retry", http.StatusServiceUnavailable)
	default:
		slog.Error("transaction operation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
