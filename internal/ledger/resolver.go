package ledger

import (
	"context"

	"github.com/google/uuid"
)

// EntityFacts is what the ledger needs to know about a referenced entity:
// whether it exists, whether it is active, and which budget owns it.
type EntityFacts struct {
	Exists   bool
	Active   bool
	BudgetID uuid.UUID
}

// EnvelopeFacts extends EntityFacts with the envelope kind, needed to gate
// debt payments.
type EnvelopeFacts struct {
	EntityFacts
	Kind EnvelopeKind
}

// Resolver answers read-only existence and ownership questions about the
// entities a transaction may reference. Lookups are by ID alone so the
// validator can distinguish "not found" from "belongs to another budget".
//
//go:generate mockgen -source=resolver.go -destination=resolver_mock.go -package=ledger
type Resolver interface {
	Envelope(ctx context.Context, id uuid.UUID) (EnvelopeFacts, error)
	Payee(ctx context.Context, id uuid.UUID) (EntityFacts, error)
	IncomeSource(ctx context.Context, id uuid.UUID) (EntityFacts, error)
}

// Facts is the resolver output for every entity a draft references, keyed by
// entity ID. Missing keys mean the draft did not reference that entity.
type Facts struct {
	Envelopes     map[uuid.UUID]EnvelopeFacts
	Payees        map[uuid.UUID]EntityFacts
	IncomeSources map[uuid.UUID]EntityFacts
}
