package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/tmendes/pouch/internal/ledger"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectTransactionColumns = `
	t.id, t.budget_id, t.type, t.amount, t.date, t.description,
	t.from_envelope_id, t.to_envelope_id, t.payee_id, t.income_source_id,
	t.created_by, t.created_at, t.updated_at, t.is_deleted, t.deleted_at, t.deleted_by
`

// scanTransaction reads a transaction row and rebuilds the kind-specific
// details from the nullable reference columns.
func scanTransaction(s scanner) (*ledger.Transaction, error) {
	var (
		t         ledger.Transaction
		kindStr   string
		refs      ledger.Refs
		isDeleted bool
		desc      sql.NullString
	)

	if err := s.Scan(
		&t.ID, &t.BudgetID, &kindStr, &t.Amount, &t.Date, &desc,
		&refs.FromEnvelopeID, &refs.ToEnvelopeID, &refs.PayeeID, &refs.IncomeSourceID,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &isDeleted, &t.DeletedAt, &t.DeletedBy,
	); err != nil {
		return nil, err
	}

	t.Description = desc.String

	details, err := ledger.DetailsFromRefs(ledger.Kind(kindStr), refs)
	if err != nil {
		return nil, err
	}

	t.Details = details

	return &t, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions t
		WHERE t.id = $1`

	t, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter ledger.ListFilter) ([]*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions t
		WHERE t.budget_id = $1`

	args := []any{filter.BudgetID}
	argIdx := 2

	if !filter.IncludeDeleted {
		query += " AND NOT t.is_deleted"
	}

	if filter.Kind != nil {
		query += fmt.Sprintf(" AND t.type = $%d", argIdx)

		args = append(args, *filter.Kind)
		argIdx++
	}

	if filter.EnvelopeID != nil {
		query += fmt.Sprintf(" AND (t.from_envelope_id = $%d OR t.to_envelope_id = $%d)", argIdx, argIdx)

		args = append(args, *filter.EnvelopeID)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND t.date >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND t.date <= $%d", argIdx)

		args = append(args, *filter.EndDate)
		argIdx++
	}

	query += " ORDER BY t.date ASC, t.created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}

	return txs, nil
}

func (s *Store) ListEvents(ctx context.Context, transactionID uuid.UUID) ([]*ledger.Event, error) {
	query := `
		SELECT id, transaction_id, event_type, before_state, after_state, performed_by, performed_at
		FROM transaction_events
		WHERE transaction_id = $1
		ORDER BY performed_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*ledger.Event

	for rows.Next() {
		var (
			e             ledger.Event
			typeStr       string
			before, after []byte
		)

		if err := rows.Scan(&e.ID, &e.TransactionID, &typeStr, &before, &after, &e.PerformedBy, &e.PerformedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		e.Type = ledger.EventType(typeStr)
		e.Before = before
		e.After = after

		events = append(events,&e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return events, nil
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning unit of work: %w", err)
	}

	return &unitTx{tx: dbTx}, nil
}

// unitTx implements ledger.Tx on a single database transaction. Lock order
// is fixed across operations: transaction row, then budget row, then
// envelope rows sorted by ID, so concurrent units cannot deadlock.
type unitTx struct {
	tx *sql.Tx
}

func (u *unitTx) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return mapConflict(err)
	}

	return nil
}

func (u *unitTx) Rollback() error { return u.tx.Rollback() }

func (u *unitTx) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions t
		WHERE t.id = $1
		FOR UPDATE`

	t, err := scanTransaction(u.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}

		return nil, mapConflict(fmt.Errorf("locking transaction: %w", err))
	}

	return t, nil
}

func (u *unitTx) LockBalances(ctx context.Context, budgetID uuid.UUID, envelopeIDs []uuid.UUID) (ledger.Balances, error) {
	b := ledger.Balances{}

	budgetQuery := `SELECT available_amount FROM budgets WHERE id = $1 FOR UPDATE`

	if err := u.tx.QueryRowContext(ctx, budgetQuery, budgetID).Scan(&b.Available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Balances{}, fmt.Errorf("budget %s not found", budgetID)
		}

		return ledger.Balances{}, mapConflict(fmt.Errorf("locking budget: %w", err))
	}

	if len(envelopeIDs) == 0 {
		return b, nil
	}

	ids := slices.Clone(envelopeIDs)
	slices.SortFunc(ids, func(a, c uuid.UUID) int { return bytes.Compare(a[:], c[:]) })

	query := `SELECT id, kind, current_balance, target_amount FROM envelopes WHERE id IN (`
	args := make([]any, len(ids))

	for i, id := range ids {
		if i > 0 {
			query += ", "
		}

		query += fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query += `) ORDER BY id FOR UPDATE`

	rows, err := u.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return ledger.Balances{}, mapConflict(fmt.Errorf("locking envelopes: %w", err))
	}
	defer rows.Close()

	b.Envelopes = make(map[uuid.UUID]ledger.EnvelopeBalance, len(ids))

	for rows.Next() {
		var (
			id      uuid.UUID
			kindStr string
			balance decimal.Decimal
			target  decimal.NullDecimal
		)

		if err := rows.Scan(&id, &kindStr, &balance, &target); err != nil {
			return ledger.Balances{}, fmt.Errorf("scanning envelope balance: %w", err)
		}

		b.Envelopes[id] = ledger.EnvelopeBalance{
			Kind:    ledger.EnvelopeKind(kindStr),
			Balance: balance,
			Target:  target.Decimal,
		}
	}

	if err := rows.Err(); err != nil {
		return ledger.Balances{}, mapConflict(fmt.Errorf("iterating envelope rows: %w", err))
	}

	if len(b.Envelopes) != len(ids) {
		return ledger.Balances{}, fmt.Errorf("locked %d of %d envelopes", len(b.Envelopes), len(ids))
	}

	return b, nil
}

func (u *unitTx) UpdateBalances(ctx context.Context, budgetID uuid.UUID, b ledger.Balances) error {
	budgetQuery := `UPDATE budgets SET available_amount = $1, updated_at = NOW() WHERE id = $2`

	if _, err := u.tx.ExecContext(ctx, budgetQuery, b.Available, budgetID); err != nil {
		return fmt.Errorf("updating budget balance: %w", err)
	}

	envelopeQuery := `UPDATE envelopes SET current_balance = $1, target_amount = $2, updated_at = NOW() WHERE id = $3`

	for id, eb := range b.Envelopes {
		target := decimal.NullDecimal{Decimal: eb.Target, Valid: eb.Kind == ledger.EnvelopeDebt}

		if _, err := u.tx.ExecContext(ctx, envelopeQuery, eb.Balance, target, id); err != nil {
			return fmt.Errorf("updating envelope %s balance: %w", id, err)
		}
	}

	return nil
}

func (u *unitTx) InsertTransaction(ctx context.Context, t *ledger.Transaction) error {
	query := `
		INSERT INTO transactions (budget_id, type, amount, date, description,
			from_envelope_id, to_envelope_id, payee_id, income_source_id,
			created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING id, created_at
	`

	refs := t.Refs()

	err := u.tx.QueryRowContext(ctx, query,
		t.BudgetID,
		t.Kind(),
		t.Amount,
		t.Date,
		t.Description,
		refs.FromEnvelopeID,
		refs.ToEnvelopeID,
		refs.PayeeID,
		refs.IncomeSourceID,
		t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}

	return nil
}

func (u *unitTx) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = $1, date = $2, description = $3,
			from_envelope_id = $4, to_envelope_id = $5, payee_id = $6, income_source_id = $7,
			updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`

	refs := t.Refs()

	err := u.tx.QueryRowContext(ctx, query,
		t.Amount,
		t.Date,
		t.Description,
		refs.FromEnvelopeID,
		refs.ToEnvelopeID,
		refs.PayeeID,
		refs.IncomeSourceID,
		t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	return nil
}

func (u *unitTx) MarkDeleted(ctx context.Context, id, by uuid.UUID, at time.Time) error {
	query := `
		UPDATE transactions
		SET is_deleted = TRUE, deleted_at = $2, deleted_by = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := u.tx.ExecContext(ctx, query, id, at, by); err != nil {
		return fmt.Errorf("marking transaction deleted: %w", err)
	}

	return nil
}

func (u *unitTx) MarkRestored(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE transactions
		SET is_deleted = FALSE, deleted_at = NULL, deleted_by = NULL, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := u.tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("marking transaction restored: %w", err)
	}

	return nil
}

func (u *unitTx) InsertEvent(ctx context.Context, e *ledger.Event) error {
	query := `
		INSERT INTO transaction_events (transaction_id, event_type, before_state, after_state, performed_by, performed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := u.tx.QueryRowContext(ctx, query,
		e.TransactionID,
		e.Type,
		[]byte(e.Before),
		[]byte(e.After),
		e.PerformedBy,
		e.PerformedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// mapConflict turns serialization failures, deadlocks and lock timeouts into
// ledger.ErrConflict so callers know the unit can be retried.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", ledger.ErrConflict, pgErr.Code)
		}
	}

	return err
}
