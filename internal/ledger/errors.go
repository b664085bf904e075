package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the referenced transaction does not exist.
	ErrNotFound = errors.New("transaction not found")

	// ErrAlreadyDeleted is returned when amending or soft-deleting a
	// transaction that is already soft-deleted.
	ErrAlreadyDeleted = errors.New("transaction is deleted")

	// ErrNotDeleted is returned when restoring a transaction that is active.
	ErrNotDeleted = errors.New("transaction is not deleted")

	// ErrUnauthorized is returned when the acting user is not allowed to
	// delete or restore the transaction.
	ErrUnauthorized = errors.New("not authorized for this transaction")

	// ErrAvailableNegative is returned when an operation would drive the
	// budget's available pool below zero. The operation is rejected before
	// any balance is written.
	ErrAvailableNegative = errors.New("budget available amount would go negative")

	// ErrConflict is returned when the atomic unit of work could not commit
	// due to a concurrent conflict. The attempt left no trace; callers may
	// retry.
	ErrConflict = errors.New("concurrent conflict, retry")
)

// Code identifies a validation rule.
type Code string

const (
	CodeMissingRequiredField     Code = "missing_required_field"
	CodeForbiddenFieldPresent    Code = "forbidden_field_present"
	CodeReferencedEntityNotFound Code = "referenced_entity_not_found"
	CodeReferencedEntityInactive Code = "referenced_entity_inactive"
	CodeEntityBudgetMismatch     Code = "entity_budget_mismatch"
	CodeSelfTransferRejected     Code = "self_transfer_rejected"
	CodeInvalidAmount            Code = "invalid_amount"
	CodeInvalidDate              Code = "invalid_date"
	CodeInvalidDescription       Code = "invalid_description"
	CodeEnvelopeTypeMismatch     Code = "envelope_type_mismatch"
)

// Violation is a single broken validation rule.
type Violation struct {
	Code    Code   `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationError reports every rule a draft transaction violates, not just
// the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}

	return "invalid transaction: " + strings.Join(msgs, "; ")
}

func errMalformedRow(kind Kind, cols string) error {
	return fmt.Errorf("%s transaction row missing %s", kind, cols)
}

func errUnknownKind(kind Kind) error {
	return fmt.Errorf("unknown transaction kind %q", kind)
}
