package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)
	ListEvents(ctx context.Context, transactionID uuid.UUID) ([]*Event, error)

	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit of work. The balance mutation, the transaction
// record write and the audit event write all happen through the same Tx and
// commit or roll back together. The balance rows a unit touches stay locked
// until Commit or Rollback, so concurrent units on the same budget or
// envelope serialize and their deltas compose.
type Tx interface {
	// GetTransactionForUpdate loads the transaction row under a row lock,
	// including soft-deleted rows.
	GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// LockBalances locks the budget row and the given envelope rows and
	// returns their current balances.
	LockBalances(ctx context.Context, budgetID uuid.UUID, envelopeIDs []uuid.UUID) (Balances, error)

	// UpdateBalances writes the post-operation balances for the locked rows.
	UpdateBalances(ctx context.Context, budgetID uuid.UUID, b Balances) error

	InsertTransaction(ctx context.Context, t *Transaction) error
	UpdateTransaction(ctx context.Context, t *Transaction) error
	MarkDeleted(ctx context.Context, id, by uuid.UUID, at time.Time) error
	MarkRestored(ctx context.Context, id uuid.UUID) error
	InsertEvent(ctx context.Context, e *Event) error

	Commit() error
	Rollback() error
}

// ListFilter narrows ListTransactions.
type ListFilter struct {
	BudgetID       uuid.UUID
	Kind           *Kind
	EnvelopeID     *uuid.UUID
	StartDate      *time.Time
	EndDate        *time.Time
	IncludeDeleted bool
}

// Service is the transaction lifecycle coordinator. Every transition runs
// validation, the balance mutation and the audit write as one atomic unit.
type Service struct {
	repo     Repository
	resolver Resolver
	rules    Rules
	now      func() time.Time
}

func NewService(repo Repository, resolver Resolver, rules Rules) *Service {
	return &Service{repo: repo, resolver: resolver, rules: rules, now: time.Now}
}

// Create validates the draft, applies its balance effect and records the
// audit event, all in one unit of work.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, draft Draft) (*Transaction, error) {
	facts, err := s.resolveFacts(ctx, draft)
	if err != nil {
		return nil, err
	}

	details, err := Validate(draft, facts, s.rules, s.now())
	if err != nil {
		return nil, err
	}

	t := &Transaction{
		BudgetID:    draft.BudgetID,
		Details:     details,
		Amount:      draft.Amount,
		Date:        draft.Date,
		Description: draft.Description,
		CreatedBy:   actor,
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning unit of work: %w", err)
	}
	defer tx.Rollback()

	before, err := tx.LockBalances(ctx, t.BudgetID, details.envelopes())
	if err != nil {
		return nil, fmt.Errorf("locking balances: %w", err)
	}

	after, err := before.Apply(t.Effect())
	if err != nil {
		return nil, err
	}

	if err := tx.UpdateBalances(ctx, t.BudgetID, after); err != nil {
		return nil, fmt.Errorf("applying balances: %w", err)
	}

	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("inserting transaction: %w", err)
	}

	err = s.record(ctx, tx, t.ID, EventCreated, actor,
		Snapshot{Balances: before},
		Snapshot{Transaction: t.State(), Balances: after},
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing create: %w", err)
	}

	return t, nil
}

// AmendParams are the new field values for an amendment. The kind is fixed
// at creation; changing it requires delete and recreate.
type AmendParams struct {
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	FromEnvelopeID *uuid.UUID
	ToEnvelopeID   *uuid.UUID
	PayeeID        *uuid.UUID
	IncomeSourceID *uuid.UUID
}

// Amend re-validates the transaction with the new values, reverses the old
// balance effect, applies the new one and records the audit event, all in
// one unit of work. Only active transactions can be amended.
func (s *Service) Amend(ctx context.Context, actor, id uuid.UUID, params AmendParams) (*Transaction, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning unit of work: %w", err)
	}
	defer tx.Rollback()

	old, err := tx.GetTransactionForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	if old.Deleted() {
		return nil, ErrAlreadyDeleted
	}

	draft := Draft{
		BudgetID:       old.BudgetID,
		Kind:           old.Kind(),
		Amount:         params.Amount,
		Date:           params.Date,
		Description:    params.Description,
		FromEnvelopeID: params.FromEnvelopeID,
		ToEnvelopeID:   params.ToEnvelopeID,
		PayeeID:        params.PayeeID,
		IncomeSourceID: params.IncomeSourceID,
	}

	facts, err := s.resolveFacts(ctx, draft)
	if err != nil {
		return nil, err
	}

	details, err := Validate(draft, facts, s.rules, s.now())
	if err != nil {
		return nil, err
	}

	updated := *old
	updated.Details = details
	updated.Amount = params.Amount
	updated.Date = params.Date
	updated.Description = params.Description

	lockSet := unionEnvelopes(old.Details.envelopes(), details.envelopes())

	before, err := tx.LockBalances(ctx, old.BudgetID, lockSet)
	if err != nil {
		return nil, fmt.Errorf("locking balances: %w", err)
	}

	net := old.Effect().Negate().Add(updated.Effect())

	after, err := before.Apply(net)
	if err != nil {
		return nil, err
	}

	if err := tx.UpdateBalances(ctx, old.BudgetID, after); err != nil {
		return nil, fmt.Errorf("applying balances: %w", err)
	}

	if err := tx.UpdateTransaction(ctx, &updated); err != nil {
		return nil, fmt.Errorf("updating transaction: %w", err)
	}

	err = s.record(ctx, tx, old.ID, EventUpdated, actor,
		Snapshot{Transaction: old.State(), Balances: before},
		Snapshot{Transaction: updated.State(), Balances: after},
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing amend: %w", err)
	}

	return &updated, nil
}

// SoftDelete reverses the transaction's balance effect and marks it deleted.
// Only the creating user may delete it.
func (s *Service) SoftDelete(ctx context.Context, actor, id uuid.UUID) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning unit of work: %w", err)
	}
	defer tx.Rollback()

	t, err := tx.GetTransactionForUpdate(ctx, id)
	if err != nil {
		return err
	}

	if t.Deleted() {
		return ErrAlreadyDeleted
	}

	if t.CreatedBy != actor {
		return ErrUnauthorized
	}

	before, err := tx.LockBalances(ctx, t.BudgetID, t.Details.envelopes())
	if err != nil {
		return fmt.Errorf("locking balances: %w", err)
	}

	after, err := before.Apply(t.Effect().Negate())
	if err != nil {
		return err
	}

	if err := tx.UpdateBalances(ctx, t.BudgetID, after); err != nil {
		return fmt.Errorf("applying balances: %w", err)
	}

	now := s.now()
	if err := tx.MarkDeleted(ctx, t.ID, actor, now); err != nil {
		return fmt.Errorf("marking deleted: %w", err)
	}

	deleted := *t
	deleted.DeletedAt = &now
	deleted.DeletedBy = &actor

	err = s.record(ctx, tx, t.ID, EventDeleted, actor,
		Snapshot{Transaction: t.State(), Balances: before},
		Snapshot{Transaction: deleted.State(), Balances: after},
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	return nil
}

// Restore re-applies the balance effect of a soft-deleted transaction and
// marks it active again. Only the creating user may restore it.
func (s *Service) Restore(ctx context.Context, actor, id uuid.UUID) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning unit of work: %w", err)
	}
	defer tx.Rollback()

	t, err := tx.GetTransactionForUpdate(ctx, id)
	if err != nil {
		return err
	}

	if !t.Deleted() {
		return ErrNotDeleted
	}

	if t.CreatedBy != actor {
		return ErrUnauthorized
	}

	before, err := tx.LockBalances(ctx, t.BudgetID, t.Details.envelopes())
	if err != nil {
		return fmt.Errorf("locking balances: %w", err)
	}

	after, err := before.Apply(t.Effect())
	if err != nil {
		return err
	}

	if err := tx.UpdateBalances(ctx, t.BudgetID, after); err != nil {
		return fmt.Errorf("applying balances: %w", err)
	}

	if err := tx.MarkRestored(ctx, t.ID); err != nil {
		return fmt.Errorf("marking restored: %w", err)
	}

	restored := *t
	restored.DeletedAt = nil
	restored.DeletedBy = nil

	err = s.record(ctx, tx, t.ID, EventRestored, actor,
		Snapshot{Transaction: t.State(), Balances: before},
		Snapshot{Transaction: restored.State(), Balances: after},
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing restore: %w", err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// Events returns the audit trail for a transaction, newest first.
func (s *Service) Events(ctx context.Context, transactionID uuid.UUID) ([]*Event, error) {
	if _, err := s.repo.GetTransaction(ctx, transactionID); err != nil {
		return nil, err
	}

	return s.repo.ListEvents(ctx, transactionID)
}

// record encodes both snapshots and appends the audit event inside the unit
// of work.
func (s *Service) record(ctx context.Context, tx Tx, txID uuid.UUID, typ EventType, actor uuid.UUID, before, after Snapshot) error {
	rawBefore, err := before.Encode()
	if err != nil {
		return err
	}

	rawAfter, err := after.Encode()
	if err != nil {
		return err
	}

	e := &Event{
		TransactionID: txID,
		Type:          typ,
		Before:        rawBefore,
		After:         rawAfter,
		PerformedBy:   actor,
		PerformedAt:   s.now(),
	}

	if err := tx.InsertEvent(ctx, e); err != nil {
		return fmt.Errorf("recording %s event: %w", typ, err)
	}

	return nil
}

// resolveFacts queries the resolver for every entity the draft references.
// Forbidden references are not resolved; their presence alone is a
// validation error.
func (s *Service) resolveFacts(ctx context.Context, d Draft) (Facts, error) {
	facts := Facts{
		Envelopes:     make(map[uuid.UUID]EnvelopeFacts),
		Payees:        make(map[uuid.UUID]EntityFacts),
		IncomeSources: make(map[uuid.UUID]EntityFacts),
	}

	for _, ref := range []*uuid.UUID{d.FromEnvelopeID, d.ToEnvelopeID} {
		if ref == nil {
			continue
		}

		if _, done := facts.Envelopes[*ref]; done {
			continue
		}

		f, err := s.resolver.Envelope(ctx, *ref)
		if err != nil {
			return Facts{}, fmt.Errorf("resolving envelope %s: %w", *ref, err)
		}

		facts.Envelopes[*ref] = f
	}

	if d.PayeeID != nil {
		f, err := s.resolver.Payee(ctx, *d.PayeeID)
		if err != nil {
			return Facts{}, fmt.Errorf("resolving payee %s: %w", *d.PayeeID, err)
		}

		facts.Payees[*d.PayeeID] = f
	}

	if d.IncomeSourceID != nil {
		f, err := s.resolver.IncomeSource(ctx, *d.IncomeSourceID)
		if err != nil {
			return Facts{}, fmt.Errorf("resolving income source %s: %w", *d.IncomeSourceID, err)
		}

		facts.IncomeSources[*d.IncomeSourceID] = f
	}

	return facts, nil
}

func unionEnvelopes(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))

	for _, id := range append(a, b...) {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}

		out = append(out, id)
	}

	return out
}
