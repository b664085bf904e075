package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tmendes/pouch/internal/ledger"
	"github.com/tmendes/pouch/internal/resolver"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Envelope(ctx context.Context, id uuid.UUID) (ledger.EnvelopeFacts, error) {
	query := `SELECT budget_id, kind, is_active FROM envelopes WHERE id = $1`

	var (
		f       ledger.EnvelopeFacts
		kindStr string
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(&f.BudgetID, &kindStr, &f.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.EnvelopeFacts{}, nil
		}

		return ledger.EnvelopeFacts{}, fmt.Errorf("resolving envelope: %w", err)
	}

	f.Exists = true
	f.Kind = ledger.EnvelopeKind(kindStr)

	return f, nil
}

func (s *Store) Payee(ctx context.Context, id uuid.UUID) (ledger.EntityFacts, error) {
	return s.entity(ctx, "payees", id)
}

func (s *Store) IncomeSource(ctx context.Context, id uuid.UUID) (ledger.EntityFacts, error) {
	return s.entity(ctx, "income_sources", id)
}

// entity runs the shared exists/active/ownership lookup. The table name is
// one of two fixed identifiers, never caller input.
func (s *Store) entity(ctx context.Context, table string, id uuid.UUID) (ledger.EntityFacts, error) {
	query := fmt.Sprintf(`SELECT budget_id, is_active FROM %s WHERE id = $1`, table)

	var f ledger.EntityFacts

	err := s.db.QueryRowContext(ctx, query, id).Scan(&f.BudgetID, &f.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.EntityFacts{}, nil
		}

		return ledger.EntityFacts{}, fmt.Errorf("resolving %s entity: %w", table, err)
	}

	f.Exists = true

	return f, nil
}

func (s *Store) BudgetBalances(ctx context.Context, budgetID uuid.UUID) (*resolver.BudgetBalances, error) {
	b := &resolver.BudgetBalances{BudgetID: budgetID}

	budgetQuery := `SELECT available_amount FROM budgets WHERE id = $1`

	if err := s.db.QueryRowContext(ctx, budgetQuery, budgetID).Scan(&b.Available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resolver.ErrBudgetNotFound
		}

		return nil, fmt.Errorf("reading budget balance: %w", err)
	}

	envelopeQuery := `
		SELECT id, name, kind, current_balance, target_amount, is_active
		FROM envelopes
		WHERE budget_id = $1
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, envelopeQuery, budgetID)
	if err != nil {
		return nil, fmt.Errorf("reading envelope balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e       resolver.EnvelopeBalance
			kindStr string
			target  decimal.NullDecimal
		)

		if err := rows.Scan(&e.ID, &e.Name, &kindStr, &e.Balance, &target, &e.Active); err != nil {
			return nil, fmt.Errorf("scanning envelope balance: %w", err)
		}

		e.Kind = ledger.EnvelopeKind(kindStr)
		if target.Valid {
			e.Target = &target.Decimal
		}

		b.Envelopes = append(b.Envelopes, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating envelope rows: %w", err)
	}

	return b, nil
}
