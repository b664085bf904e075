package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EnvelopeBalance is the balance state of one envelope. Target is only
// meaningful for debt envelopes.
type EnvelopeBalance struct {
	Kind    EnvelopeKind    `json:"kind"`
	Balance decimal.Decimal `json:"current_balance"`
	Target  decimal.Decimal `json:"target_amount"`
}

// Balances is the balance state of a budget and the envelopes an operation
// touches, read under row locks inside the unit of work.
type Balances struct {
	Available decimal.Decimal               `json:"available_amount"`
	Envelopes map[uuid.UUID]EnvelopeBalance `json:"envelopes,omitempty"`
}

// EnvelopeDelta is the change to one envelope's balances.
type EnvelopeDelta struct {
	Balance decimal.Decimal
	Target  decimal.Decimal
}

// Delta is the net balance effect of one ledger operation.
type Delta struct {
	Available decimal.Decimal
	Envelopes map[uuid.UUID]EnvelopeDelta
}

// Effect returns the forward balance effect of the transaction.
func (t *Transaction) Effect() Delta {
	a := t.Amount

	switch d := t.Details.(type) {
	case Income:
		return Delta{Available: a}
	case Allocation:
		return Delta{
			Available: a.Neg(),
			Envelopes: map[uuid.UUID]EnvelopeDelta{
				d.ToEnvelopeID: {Balance: a},
			},
		}
	case Expense:
		return Delta{
			Envelopes: map[uuid.UUID]EnvelopeDelta{
				d.FromEnvelopeID: {Balance: a.Neg()},
			},
		}
	case Transfer:
		return Delta{
			Envelopes: map[uuid.UUID]EnvelopeDelta{
				d.FromEnvelopeID: {Balance: a.Neg()},
				d.ToEnvelopeID:   {Balance: a},
			},
		}
	case DebtPayment:
		return Delta{
			Envelopes: map[uuid.UUID]EnvelopeDelta{
				d.FromEnvelopeID: {Balance: a.Neg(), Target: a.Neg()},
			},
		}
	default:
		// Details is sealed; a new kind must extend this switch.
		panic(errUnknownKind(t.Kind()))
	}
}

// Negate returns the exact reversal of the delta. Applying a delta and then
// its negation restores every balance to its prior value.
func (d Delta) Negate() Delta {
	out := Delta{Available: d.Available.Neg()}

	if d.Envelopes != nil {
		out.Envelopes = make(map[uuid.UUID]EnvelopeDelta, len(d.Envelopes))
		for id, ed := range d.Envelopes {
			out.Envelopes[id] = EnvelopeDelta{
				Balance: ed.Balance.Neg(),
				Target:  ed.Target.Neg(),
			}
		}
	}

	return out
}

// Add combines two deltas into one. Used by amendment to net the reversal of
// the old values against the application of the new ones.
func (d Delta) Add(other Delta) Delta {
	out := Delta{Available: d.Available.Add(other.Available)}

	n := len(d.Envelopes) + len(other.Envelopes)
	if n > 0 {
		out.Envelopes = make(map[uuid.UUID]EnvelopeDelta, n)
	}

	for id, ed := range d.Envelopes {
		out.Envelopes[id] = ed
	}

	for id, ed := range other.Envelopes {
		prev := out.Envelopes[id]
		out.Envelopes[id] = EnvelopeDelta{
			Balance: prev.Balance.Add(ed.Balance),
			Target:  prev.Target.Add(ed.Target),
		}
	}

	return out
}

// Apply returns the balances after the delta. The receiver is not modified.
// It fails with ErrAvailableNegative if the available pool would end up
// below zero, before anything is written.
func (b Balances) Apply(d Delta) (Balances, error) {
	out := Balances{Available: b.Available.Add(d.Available)}

	if out.Available.IsNegative() {
		return Balances{}, ErrAvailableNegative
	}

	if b.Envelopes != nil {
		out.Envelopes = make(map[uuid.UUID]EnvelopeBalance, len(b.Envelopes))
		for id, eb := range b.Envelopes {
			out.Envelopes[id] = eb
		}
	}

	for id, ed := range d.Envelopes {
		eb, ok := out.Envelopes[id]
		if !ok {
			return Balances{}, fmt.Errorf("envelope %s not locked for this operation", id)
		}

		eb.Balance = eb.Balance.Add(ed.Balance)
		if eb.Kind == EnvelopeDebt {
			eb.Target = eb.Target.Add(ed.Target)
		}

		out.Envelopes[id] = eb
	}

	return out, nil
}
