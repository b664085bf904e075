package resolver

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tmendes/pouch/internal/ledger"
)

// ErrBudgetNotFound is returned by Balances for an unknown budget.
var ErrBudgetNotFound = errors.New("budget not found")

// Repository answers entity lookups and the per-budget balances query.
type Repository interface {
	Envelope(ctx context.Context, id uuid.UUID) (ledger.EnvelopeFacts, error)
	Payee(ctx context.Context, id uuid.UUID) (ledger.EntityFacts, error)
	IncomeSource(ctx context.Context, id uuid.UUID) (ledger.EntityFacts, error)
	BudgetBalances(ctx context.Context, budgetID uuid.UUID) (*BudgetBalances, error)
}

// Service is the entity resolver the ledger consults for existence, activity
// and ownership facts. It also serves the balances read model.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Envelope(ctx context.Context, id uuid.UUID) (ledger.EnvelopeFacts, error) {
	return s.repo.Envelope(ctx, id)
}

func (s *Service) Payee(ctx context.Context, id uuid.UUID) (ledger.EntityFacts, error) {
	return s.repo.Payee(ctx, id)
}

func (s *Service) IncomeSource(ctx context.Context, id uuid.UUID) (ledger.EntityFacts, error) {
	return s.repo.IncomeSource(ctx, id)
}

// BudgetBalances is the read-model snapshot of a budget's balances.
type BudgetBalances struct {
	BudgetID  uuid.UUID
	Available decimal.Decimal
	Envelopes []EnvelopeBalance
}

// EnvelopeBalance is one envelope's balance line in the read model. Target
// is only set for debt envelopes.
type EnvelopeBalance struct {
	ID      uuid.UUID
	Name    string
	Kind    ledger.EnvelopeKind
	Balance decimal.Decimal
	Target  *decimal.Decimal
	Active  bool
}

// Balances returns the current balances of a budget and all its envelopes.
func (s *Service) Balances(ctx context.Context, budgetID uuid.UUID) (*BudgetBalances, error) {
	return s.repo.BudgetBalances(ctx, budgetID)
}
