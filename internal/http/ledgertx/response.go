package ledgertx

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tmendes/pouch/internal/ledger"
)

type transactionResponse struct {
	ID             uuid.UUID       `json:"id"`
	BudgetID       uuid.UUID       `json:"budget_id"`
	Kind           ledger.Kind     `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description,omitempty"`
	FromEnvelopeID *uuid.UUID      `json:"from_envelope_id,omitempty"`
	ToEnvelopeID   *uuid.UUID      `json:"to_envelope_id,omitempty"`
	PayeeID        *uuid.UUID      `json:"payee_id,omitempty"`
	IncomeSourceID *uuid.UUID      `json:"income_source_id,omitempty"`
	IsDeleted      bool            `json:"is_deleted"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy      *uuid.UUID      `json:"deleted_by,omitempty"`
}

func toResponse(t *ledger.Transaction) transactionResponse {
	refs := t.Refs()

	return transactionResponse{
		ID:             t.ID,
		BudgetID:       t.BudgetID,
		Kind:           t.Kind(),
		Amount:         t.Amount,
		Date:           t.Date,
		Description:    t.Description,
		FromEnvelopeID: refs.FromEnvelopeID,
		ToEnvelopeID:   refs.ToEnvelopeID,
		PayeeID:        refs.PayeeID,
		IncomeSourceID: refs.IncomeSourceID,
		IsDeleted:      t.Deleted(),
		CreatedBy:      t.CreatedBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		DeletedAt:      t.DeletedAt,
		DeletedBy:      t.DeletedBy,
	}
}

func toResponseList(txs []*ledger.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = toResponse(t)
	}

	return resp
}

type eventResponse struct {
	ID            uuid.UUID        `json:"id"`
	TransactionID uuid.UUID        `json:"transaction_id"`
	Type          ledger.EventType `json:"event_type"`
	Before        json.RawMessage  `json:"before_state"`
	After         json.RawMessage  `json:"after_state"`
	PerformedBy   uuid.UUID        `json:"performed_by"`
	PerformedAt   time.Time        `json:"performed_at"`
}

func toEventResponseList(events []*ledger.Event) []eventResponse {
	resp := make([]eventResponse, len(events))
	for i, e := range events {
		resp[i] = eventResponse{
			ID:            e.ID,
			TransactionID: e.TransactionID,
			Type:          e.Type,
			Before:        e.Before,
			After:         e.After,
			PerformedBy:   e.PerformedBy,
			PerformedAt:   e.PerformedAt,
		}
	}

	return resp
}

type errorResponse struct {
	Error      string             `json:"error"`
	Violations []ledger.Violation `json:"violations,omitempty"`
}
