package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind represents the kind of a ledger transaction.
type Kind string

const (
	KindIncome      Kind = "income"
	KindAllocation  Kind = "allocation"
	KindExpense     Kind = "expense"
	KindTransfer    Kind = "transfer"
	KindDebtPayment Kind = "debt_payment"
)

// EnvelopeKind distinguishes plain spending envelopes from debt envelopes,
// which additionally track remaining principal.
type EnvelopeKind string

const (
	EnvelopeStandard EnvelopeKind = "standard"
	EnvelopeDebt     EnvelopeKind = "debt"
)

// Details is the kind-specific payload of a transaction. Each implementation
// carries exactly the references its kind requires, so a validated
// transaction cannot hold a reference its kind forbids.
type Details interface {
	Kind() Kind

	// envelopes returns the envelope IDs the transaction touches, in no
	// particular order. Also seals the interface to this package.
	envelopes() []uuid.UUID
}

// Income credits the budget's available pool from an income source.
type Income struct {
	SourceID uuid.UUID
}

func (Income) Kind() Kind             { return KindIncome }
func (Income) envelopes() []uuid.UUID { return nil }

// Allocation moves money from the available pool into an envelope.
type Allocation struct {
	ToEnvelopeID uuid.UUID
}

func (Allocation) Kind() Kind               { return KindAllocation }
func (a Allocation) envelopes() []uuid.UUID { return []uuid.UUID{a.ToEnvelopeID} }

// Expense spends money from an envelope toward a payee.
type Expense struct {
	FromEnvelopeID uuid.UUID
	PayeeID        uuid.UUID
}

func (Expense) Kind() Kind               { return KindExpense }
func (e Expense) envelopes() []uuid.UUID { return []uuid.UUID{e.FromEnvelopeID} }

// Transfer moves money between two envelopes of the same budget.
type Transfer struct {
	FromEnvelopeID uuid.UUID
	ToEnvelopeID   uuid.UUID
}

func (Transfer) Kind() Kind { return KindTransfer }
func (t Transfer) envelopes() []uuid.UUID {
	return []uuid.UUID{t.FromEnvelopeID, t.ToEnvelopeID}
}

// DebtPayment spends from a debt envelope and reduces its remaining
// principal by the same amount.
type DebtPayment struct {
	FromEnvelopeID uuid.UUID
	PayeeID        uuid.UUID
}

func (DebtPayment) Kind() Kind               { return KindDebtPayment }
func (d DebtPayment) envelopes() []uuid.UUID { return []uuid.UUID{d.FromEnvelopeID} }

// Transaction represents a single money movement within a budget.
type Transaction struct {
	ID          uuid.UUID
	BudgetID    uuid.UUID
	Details     Details
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
	DeletedBy   *uuid.UUID
}

func (t *Transaction) Kind() Kind { return t.Details.Kind() }

// Deleted reports whether the transaction is soft-deleted, i.e. its balance
// effect is currently reversed.
func (t *Transaction) Deleted() bool { return t.DeletedAt != nil }

// Refs is the flattened, nullable-column view of the kind-specific
// references, as persisted.
type Refs struct {
	FromEnvelopeID *uuid.UUID
	ToEnvelopeID   *uuid.UUID
	PayeeID        *uuid.UUID
	IncomeSourceID *uuid.UUID
}

// Refs flattens the transaction's details into the persisted column shape.
func (t *Transaction) Refs() Refs {
	var r Refs

	switch d := t.Details.(type) {
	case Income:
		r.IncomeSourceID = &d.SourceID
	case Allocation:
		r.ToEnvelopeID = &d.ToEnvelopeID
	case Expense:
		r.FromEnvelopeID = &d.FromEnvelopeID
		r.PayeeID = &d.PayeeID
	case Transfer:
		r.FromEnvelopeID = &d.FromEnvelopeID
		r.ToEnvelopeID = &d.ToEnvelopeID
	case DebtPayment:
		r.FromEnvelopeID = &d.FromEnvelopeID
		r.PayeeID = &d.PayeeID
	}

	return r
}

// DetailsFromRefs rebuilds the kind-specific details from persisted columns.
// It trusts the row to satisfy the per-kind contract and only checks that the
// columns the kind requires are present.
func DetailsFromRefs(kind Kind, r Refs) (Details, error) {
	switch kind {
	case KindIncome:
		if r.IncomeSourceID == nil {
			return nil, errMalformedRow(kind, "income_source_id")
		}

		return Income{SourceID: *r.IncomeSourceID}, nil
	case KindAllocation:
		if r.ToEnvelopeID == nil {
			return nil, errMalformedRow(kind, "to_envelope_id")
		}

		return Allocation{ToEnvelopeID: *r.ToEnvelopeID}, nil
	case KindExpense:
		if r.FromEnvelopeID == nil || r.PayeeID == nil {
			return nil, errMalformedRow(kind, "from_envelope_id, payee_id")
		}

		return Expense{FromEnvelopeID: *r.FromEnvelopeID, PayeeID: *r.PayeeID}, nil
	case KindTransfer:
		if r.FromEnvelopeID == nil || r.ToEnvelopeID == nil {
			return nil, errMalformedRow(kind, "from_envelope_id, to_envelope_id")
		}

		return Transfer{FromEnvelopeID: *r.FromEnvelopeID, ToEnvelopeID: *r.ToEnvelopeID}, nil
	case KindDebtPayment:
		if r.FromEnvelopeID == nil || r.PayeeID == nil {
			return nil, errMalformedRow(kind, "from_envelope_id, payee_id")
		}

		return DebtPayment{FromEnvelopeID: *r.FromEnvelopeID, PayeeID: *r.PayeeID}, nil
	default:
		return nil, errUnknownKind(kind)
	}
}
