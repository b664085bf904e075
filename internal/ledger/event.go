package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies the lifecycle transition an audit event records.
type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventRestored EventType = "restored"
)

// Event is one immutable audit record. Before and After hold full snapshots
// of the transaction and every balance the operation touched, encoded as
// JSON, so past state can be reconstructed without replaying the ledger.
type Event struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Type          EventType
	Before        json.RawMessage
	After         json.RawMessage
	PerformedBy   uuid.UUID
	PerformedAt   time.Time
}

// Snapshot is the state captured on either side of a ledger operation.
// Transaction is nil in the before-snapshot of a creation.
type Snapshot struct {
	Transaction *TransactionState `json:"transaction,omitempty"`
	Balances    Balances          `json:"balances"`
}

// TransactionState is the flattened persisted shape of a transaction, used
// inside snapshots.
type TransactionState struct {
	ID             uuid.UUID  `json:"id"`
	BudgetID       uuid.UUID  `json:"budget_id"`
	Kind           Kind       `json:"kind"`
	Amount         string     `json:"amount"`
	Date           time.Time  `json:"date"`
	Description    string     `json:"description,omitempty"`
	FromEnvelopeID *uuid.UUID `json:"from_envelope_id,omitempty"`
	ToEnvelopeID   *uuid.UUID `json:"to_envelope_id,omitempty"`
	PayeeID        *uuid.UUID `json:"payee_id,omitempty"`
	IncomeSourceID *uuid.UUID `json:"income_source_id,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      *uuid.UUID `json:"deleted_by,omitempty"`
}

// State flattens the transaction for inclusion in a snapshot.
func (t *Transaction) State() *TransactionState {
	refs := t.Refs()

	return &TransactionState{
		ID:             t.ID,
		BudgetID:       t.BudgetID,
		Kind:           t.Kind(),
		Amount:         t.Amount.StringFixed(2),
		Date:           t.Date,
		Description:    t.Description,
		FromEnvelopeID: refs.FromEnvelopeID,
		ToEnvelopeID:   refs.ToEnvelopeID,
		PayeeID:        refs.PayeeID,
		IncomeSourceID: refs.IncomeSourceID,
		IsDeleted:      t.Deleted(),
		DeletedAt:      t.DeletedAt,
		DeletedBy:      t.DeletedBy,
	}
}

// Encode serializes the snapshot for the append-only event record.
func (s Snapshot) Encode() (json.RawMessage, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	return raw, nil
}
