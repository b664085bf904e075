package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rules are the configurable bounds the validator applies to every kind.
type Rules struct {
	// DateGrace is how far into the future a transaction date may lie.
	DateGrace time.Duration

	// MaxDescription bounds the description length in runes.
	MaxDescription int
}

// Draft is a proposed transaction as received from the API layer: the kind
// plus every optional reference, before the per-kind contract is enforced.
type Draft struct {
	BudgetID       uuid.UUID
	Kind           Kind
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	FromEnvelopeID *uuid.UUID
	ToEnvelopeID   *uuid.UUID
	PayeeID        *uuid.UUID
	IncomeSourceID *uuid.UUID
}

// reference names the draft fields as they appear in violations.
const (
	fieldAmount       = "amount"
	fieldDate         = "date"
	fieldDescription  = "description"
	fieldFromEnvelope = "from_envelope_id"
	fieldToEnvelope   = "to_envelope_id"
	fieldPayee        = "payee_id"
	fieldIncomeSource = "income_source_id"
	fieldKind         = "kind"
)

// Validate checks the draft against the general rules and its kind's
// contract, using resolver facts for every referenced entity. On success it
// returns the kind-specific details carrying exactly the required
// references. On failure it returns a *ValidationError listing every
// violated rule.
//
// Validate is pure: it never touches storage, and the same inputs always
// produce the same result.
func Validate(d Draft, facts Facts, rules Rules, now time.Time) (Details, error) {
	v := newValidation(d, facts, rules, now)

	v.general()

	var details Details

	switch d.Kind {
	case KindIncome:
		v.require(fieldIncomeSource, d.IncomeSourceID)
		v.forbid(fieldFromEnvelope, d.FromEnvelopeID)
		v.forbid(fieldToEnvelope, d.ToEnvelopeID)
		v.forbid(fieldPayee, d.PayeeID)
		v.incomeSource(d.IncomeSourceID)

		if v.ok() {
			details = Income{SourceID: *d.IncomeSourceID}
		}
	case KindAllocation:
		v.require(fieldToEnvelope, d.ToEnvelopeID)
		v.forbid(fieldFromEnvelope, d.FromEnvelopeID)
		v.forbid(fieldPayee, d.PayeeID)
		v.forbid(fieldIncomeSource, d.IncomeSourceID)
		v.envelope(fieldToEnvelope, d.ToEnvelopeID, anyEnvelope)

		if v.ok() {
			details = Allocation{ToEnvelopeID: *d.ToEnvelopeID}
		}
	case KindExpense:
		v.require(fieldFromEnvelope, d.FromEnvelopeID)
		v.require(fieldPayee, d.PayeeID)
		v.forbid(fieldToEnvelope, d.ToEnvelopeID)
		v.forbid(fieldIncomeSource, d.IncomeSourceID)
		v.envelope(fieldFromEnvelope, d.FromEnvelopeID, anyEnvelope)
		v.payee(d.PayeeID)

		if v.ok() {
			details = Expense{FromEnvelopeID: *d.FromEnvelopeID, PayeeID: *d.PayeeID}
		}
	case KindTransfer:
		v.require(fieldFromEnvelope, d.FromEnvelopeID)
		v.require(fieldToEnvelope, d.ToEnvelopeID)
		v.forbid(fieldPayee, d.PayeeID)
		v.forbid(fieldIncomeSource, d.IncomeSourceID)
		v.envelope(fieldFromEnvelope, d.FromEnvelopeID, anyEnvelope)
		v.envelope(fieldToEnvelope, d.ToEnvelopeID, anyEnvelope)

		if d.FromEnvelopeID != nil && d.ToEnvelopeID != nil && *d.FromEnvelopeID == *d.ToEnvelopeID {
			v.add(CodeSelfTransferRejected, fieldToEnvelope, "transfer source and target envelopes must differ")
		}

		if v.ok() {
			details = Transfer{FromEnvelopeID: *d.FromEnvelopeID, ToEnvelopeID: *d.ToEnvelopeID}
		}
	case KindDebtPayment:
		v.require(fieldFromEnvelope, d.FromEnvelopeID)
		v.require(fieldPayee, d.PayeeID)
		v.forbid(fieldToEnvelope, d.ToEnvelopeID)
		v.forbid(fieldIncomeSource, d.IncomeSourceID)
		v.envelope(fieldFromEnvelope, d.FromEnvelopeID, EnvelopeDebt)
		v.payee(d.PayeeID)

		if v.ok() {
			details = DebtPayment{FromEnvelopeID: *d.FromEnvelopeID, PayeeID: *d.PayeeID}
		}
	default:
		v.add(CodeMissingRequiredField, fieldKind, fmt.Sprintf("unknown transaction kind %q", d.Kind))
	}

	if !v.ok() {
		return nil, &ValidationError{Violations: v.violations}
	}

	return details, nil
}

// anyEnvelope disables the envelope kind constraint.
const anyEnvelope EnvelopeKind = ""

type validation struct {
	draft      Draft
	facts      Facts
	rules      Rules
	now        time.Time
	violations []Violation
}

func newValidation(d Draft, facts Facts, rules Rules, now time.Time) *validation {
	return &validation{draft: d, facts: facts, rules: rules, now: now}
}

func (v *validation) ok() bool { return len(v.violations) == 0 }

func (v *validation) add(code Code, field, message string) {
	v.violations = append(v.violations, Violation{Code: code, Field: field, Message: message})
}

func (v *validation) general() {
	if !v.draft.Amount.IsPositive() {
		v.add(CodeInvalidAmount, fieldAmount, "amount must be positive")
	}

	if v.draft.Amount.Exponent() < -2 {
		v.add(CodeInvalidAmount, fieldAmount, "amount must have at most two decimal places")
	}

	if v.draft.Date.IsZero() {
		v.add(CodeInvalidDate, fieldDate, "date is required")
	} else if v.draft.Date.After(v.now.Add(v.rules.DateGrace)) {
		v.add(CodeInvalidDate, fieldDate, "date is too far in the future")
	}

	if v.rules.MaxDescription > 0 && len([]rune(v.draft.Description)) > v.rules.MaxDescription {
		v.add(CodeInvalidDescription, fieldDescription, "description too long")
	}
}

func (v *validation) require(field string, ref *uuid.UUID) {
	if ref == nil {
		v.add(CodeMissingRequiredField, field, field+" is required for "+string(v.draft.Kind))
	}
}

func (v *validation) forbid(field string, ref *uuid.UUID) {
	if ref != nil {
		v.add(CodeForbiddenFieldPresent, field, field+" is not allowed for "+string(v.draft.Kind))
	}
}

// entity checks the shared existence, activity and ownership rules. It
// returns true only if all of them hold.
func (v *validation) entity(field string, id uuid.UUID, f EntityFacts) bool {
	if !f.Exists {
		v.add(CodeReferencedEntityNotFound, field, fmt.Sprintf("%s %s not found", field, id))
		return false
	}

	ok := true

	if f.BudgetID != v.draft.BudgetID {
		v.add(CodeEntityBudgetMismatch, field, fmt.Sprintf("%s %s belongs to another budget", field, id))

		ok = false
	}

	if !f.Active {
		v.add(CodeReferencedEntityInactive, field, fmt.Sprintf("%s %s is inactive", field, id))

		ok = false
	}

	return ok
}

func (v *validation) envelope(field string, ref *uuid.UUID, want EnvelopeKind) {
	if ref == nil {
		return
	}

	f := v.facts.Envelopes[*ref]
	if !v.entity(field, *ref, f.EntityFacts) {
		return
	}

	if want != anyEnvelope && f.Kind != want {
		v.add(CodeEnvelopeTypeMismatch, field,
			fmt.Sprintf("%s %s is not a %s envelope", field, *ref, want))
	}
}

func (v *validation) payee(ref *uuid.UUID) {
	if ref == nil {
		return
	}

	v.entity(fieldPayee, *ref, v.facts.Payees[*ref])
}

func (v *validation) incomeSource(ref *uuid.UUID) {
	if ref == nil {
		return
	}

	v.entity(fieldIncomeSource, *ref, v.facts.IncomeSources[*ref])
}
