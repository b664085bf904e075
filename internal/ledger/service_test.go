package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tmendes/pouch/internal/ledger"
)

type serviceMocks struct {
	repo     *ledger.MockRepository
	tx       *ledger.MockTx
	resolver *ledger.MockResolver
}

func newServiceMocks(t *testing.T) (*ledger.Service, serviceMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := serviceMocks{
		repo:     ledger.NewMockRepository(ctrl),
		tx:       ledger.NewMockTx(ctrl),
		resolver: ledger.NewMockResolver(ctrl),
	}

	svc := ledger.NewService(m.repo, m.resolver, testRules())

	return svc, m
}

func TestService_Create_Income(t *testing.T) {
	svc, m := newServiceMocks(t)

	actor := uuid.New()
	sourceID := uuid.New()

	draft := baseDraft(ledger.KindIncome)
	draft.Amount = dec("5000")
	draft.Date = time.Now()
	draft.IncomeSourceID = &sourceID

	m.resolver.EXPECT().IncomeSource(gomock.Any(), sourceID).Return(activeEntity(), nil)
	m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.tx.EXPECT().LockBalances(gomock.Any(), testBudgetID, gomock.Len(0)).
		Return(ledger.Balances{Available: dec("250")}, nil)
	m.tx.EXPECT().UpdateBalances(gomock.Any(), testBudgetID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, b ledger.Balances) error {
			assert.True(t, b.Available.Equal(dec("5250")))
			return nil
		})
	m.tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *ledger.Transaction) error {
			tx.ID = uuid.New()
			tx.CreatedAt = time.Now()
			return nil
		})
	m.tx.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *ledger.Event) error {
			assert.Equal(t, ledger.EventCreated, e.Type)
			assert.Equal(t, actor, e.PerformedBy)

			var before, after ledger.Snapshot
			require.NoError(t, json.Unmarshal(e.Before, &before))
			require.NoError(t, json.Unmarshal(e.After, &after))

			assert.Nil(t, before.Transaction)
			assert.True(t, before.Balances.Available.Equal(dec("250")))
			require.NotNil(t, after.Transaction)
			assert.Equal(t, ledger.KindIncome, after.Transaction.Kind)
			assert.True(t, after.Balances.Available.Equal(dec("5250")))

			return nil
		})
	m.tx.EXPECT().Commit().Return(nil)
	m.tx.EXPECT().Rollback().Return(nil)

	got, err := svc.Create(context.Background(), actor, draft)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, actor, got.CreatedBy)
	assert.Equal(t, ledger.KindIncome, got.Kind())
}

func TestService_Create_ValidationFailureNeverTouchesLedger(t *testing.T) {
	svc, m := newServiceMocks(t)

	// Transfer with neither envelope set: invalid before any unit of work.
	draft := baseDraft(ledger.KindTransfer)
	draft.Date = time.Now()

	got, err := svc.Create(context.Background(), uuid.New(), draft)
	require.Error(t, err)
	assert.Nil(t, got)

	var vErr *ledger.ValidationError
	assert.ErrorAs(t, err, &vErr)

	// No Begin expectation was set on m.repo; gomock fails the test if the
	// service opens a unit of work anyway.
	_ = m
}

func TestService_Create_AllocationRejectedBeforeAnyWrite(t *testing.T) {
	svc, m := newServiceMocks(t)

	envelopeID := uuid.New()

	draft := baseDraft(ledger.KindAllocation)
	draft.Amount = dec("4000.01")
	draft.Date = time.Now()
	draft.ToEnvelopeID = &envelopeID

	m.resolver.EXPECT().Envelope(gomock.Any(), envelopeID).
		Return(activeEnvelope(ledger.EnvelopeStandard), nil)
	m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.tx.EXPECT().LockBalances(gomock.Any(), testBudgetID, []uuid.UUID{envelopeID}).
		Return(ledger.Balances{
			Available: dec("4000"),
			Envelopes: map[uuid.UUID]ledger.EnvelopeBalance{
				envelopeID: {Kind: ledger.EnvelopeStandard},
			},
		}, nil)
	m.tx.EXPECT().Rollback().Return(nil)

	_, err := svc.Create(context.Background(), uuid.New(), draft)
	assert.ErrorIs(t, err, ledger.ErrAvailableNegative)
}

func TestService_Create_EventWriteFailureRollsBack(t *testing.T) {
	svc, m := newServiceMocks(t)

	sourceID := uuid.New()

	draft := baseDraft(ledger.KindIncome)
	draft.Date = time.Now()
	draft.IncomeSourceID = &sourceID

	m.resolver.EXPECT().IncomeSource(gomock.Any(), sourceID).Return(activeEntity(), nil)
	m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.tx.EXPECT().LockBalances(gomock.Any(), testBudgetID, gomock.Any()).
		Return(ledger.Balances{Available: dec("0")}, nil)
	m.tx.EXPECT().UpdateBalances(gomock.Any(), testBudgetID, gomock.Any()).Return(nil)
	m.tx.EXPECT().InsertTransaction(gomock.Any(), gomock.Any()).Return(nil)
	m.tx.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).Return(errors.New("audit write failed"))
	m.tx.EXPECT().Rollback().Return(nil)

	_, err := svc.Create(context.Background(), uuid.New(), draft)
	assert.Error(t, err)
}

func storedExpense(actor uuid.UUID, from, payee uuid.UUID, amount string) *ledger.Transaction {
	return &ledger.Transaction{
		ID:        uuid.New(),
		BudgetID:  testBudgetID,
		Details:   ledger.Expense{FromEnvelopeID: from, PayeeID: payee},
		Amount:    dec(amount),
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CreatedBy: actor,
		CreatedAt: time.Now(),
	}
}

func TestService_SoftDelete(t *testing.T) {
	actor := uuid.New()
	from := uuid.New()

	t.Run("ReversesEffectAndMarksDeleted", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		existing := storedExpense(actor, from, uuid.New(), "45.67")

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.tx.EXPECT().LockBalances(gomock.Any(), testBudgetID, []uuid.UUID{from}).
			Return(ledger.Balances{
				Available: dec("4000"),
				Envelopes: map[uuid.UUID]ledger.EnvelopeBalance{
					from: {Kind: ledger.EnvelopeStandard, Balance: dec("454.33")},
				},
			}, nil)
		m.tx.EXPECT().UpdateBalances(gomock.Any(), testBudgetID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, b ledger.Balances) error {
				assert.True(t, b.Available.Equal(dec("4000")))
				assert.True(t, b.Envelopes[from].Balance.Equal(dec("500.00")))
				return nil
			})
		m.tx.EXPECT().MarkDeleted(gomock.Any(), existing.ID, actor, gomock.Any()).Return(nil)
		m.tx.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *ledger.Event) error {
				assert.Equal(t, ledger.EventDeleted, e.Type)

				var after ledger.Snapshot
				require.NoError(t, json.Unmarshal(e.After, &after))
				require.NotNil(t, after.Transaction)
				assert.True(t, after.Transaction.IsDeleted)

				return nil
			})
		m.tx.EXPECT().Commit().Return(nil)
		m.tx.EXPECT().Rollback().Return(nil)

		err := svc.SoftDelete(context.Background(), actor, existing.ID)
		require.NoError(t, err)
	})

	t.Run("OnlyCreatorMayDelete", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		existing := storedExpense(actor, from, uuid.New(), "10")

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.tx.EXPECT().Rollback().Return(nil)

		err := svc.SoftDelete(context.Background(), uuid.New(), existing.ID)
		assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	})

	t.Run("AlreadyDeleted", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		existing := storedExpense(actor, from, uuid.New(), "10")
		now := time.Now()
		existing.DeletedAt = &now

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.tx.EXPECT().Rollback().Return(nil)

		err := svc.SoftDelete(context.Background(), actor, existing.ID)
		assert.ErrorIs(t, err, ledger.ErrAlreadyDeleted)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		id := uuid.New()

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), id).Return(nil, ledger.ErrNotFound)
		m.tx.EXPECT().Rollback().Return(nil)

		err := svc.SoftDelete(context.Background(), actor, id)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestService_Restore(t *testing.T) {
	actor := uuid.New()
	from := uuid.New()

	t.Run("ReappliesEffect", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		existing := storedExpense(actor, from, uuid.New(), "45.67")
		now := time.Now()
		existing.DeletedAt = &now
		existing.DeletedBy = &actor

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.tx.EXPECT().LockBalances(gomock.Any(), testBudgetID, []uuid.UUID{from}).
			Return(ledger.Balances{
				Available: dec("4000"),
				Envelopes: map[uuid.UUID]ledger.EnvelopeBalance{
					from: {Kind: ledger.EnvelopeStandard, Balance: dec("500.00")},
				},
			}, nil)
		m.tx.EXPECT().UpdateBalances(gomock.Any(), testBudgetID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, b ledger.Balances) error {
				assert.True(t, b.Envelopes[from].Balance.Equal(dec("454.33")))
				return nil
			})
		m.tx.EXPECT().MarkRestored(gomock.Any(), existing.ID).Return(nil)
		m.tx.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *ledger.Event) error {
				assert.Equal(t, ledger.EventRestored, e.Type)
				return nil
			})
		m.tx.EXPECT().Commit().Return(nil)
		m.tx.EXPECT().Rollback().Return(nil)

		err := svc.Restore(context.Background(), actor, existing.ID)
		require.NoError(t, err)
	})

	t.Run("ActiveTransaction", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		existing := storedExpense(actor, from, uuid.New(), "10")

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.tx.EXPECT().Rollback().Return(nil)

		err := svc.Restore(context.Background(), actor, existing.ID)
		assert.ErrorIs(t, err, ledger.ErrNotDeleted)
	})
}

func TestService_Amend(t *testing.T) {
	actor := uuid.New()
	from := uuid.New()
	payee := uuid.New()

	t.Run("NetsOldAndNewEffects", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		existing := storedExpense(actor, from, payee, "100")

		params := ledger.AmendParams{
			Amount:         dec("60"),
			Date:           existing.Date,
			Description:    "corrected",
			FromEnvelopeID: &from,
			PayeeID:        &payee,
		}

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.resolver.EXPECT().Envelope(gomock.Any(), from).
			Return(activeEnvelope(ledger.EnvelopeStandard), nil)
		m.resolver.EXPECT().Payee(gomock.Any(), payee).Return(activeEntity(), nil)
		m.tx.EXPECT().LockBalances(gomock.Any(), testBudgetID, []uuid.UUID{from}).
			Return(ledger.Balances{
				Available: dec("4000"),
				Envelopes: map[uuid.UUID]ledger.EnvelopeBalance{
					from: {Kind: ledger.EnvelopeStandard, Balance: dec("400")},
				},
			}, nil)
		m.tx.EXPECT().UpdateBalances(gomock.Any(), testBudgetID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, b ledger.Balances) error {
				// 400 + 100 (reversal) - 60 (new amount).
				assert.True(t, b.Envelopes[from].Balance.Equal(dec("440")))
				return nil
			})
		m.tx.EXPECT().UpdateTransaction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, tx *ledger.Transaction) error {
				assert.True(t, tx.Amount.Equal(dec("60")))
				assert.Equal(t, "corrected", tx.Description)
				assert.Equal(t, ledger.KindExpense, tx.Kind())
				return nil
			})
		m.tx.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *ledger.Event) error {
				assert.Equal(t, ledger.EventUpdated, e.Type)

				var before, after ledger.Snapshot
				require.NoError(t, json.Unmarshal(e.Before, &before))
				require.NoError(t, json.Unmarshal(e.After, &after))
				assert.Equal(t, "100.00", before.Transaction.Amount)
				assert.Equal(t, "60.00", after.Transaction.Amount)

				return nil
			})
		m.tx.EXPECT().Commit().Return(nil)
		m.tx.EXPECT().Rollback().Return(nil)

		got, err := svc.Amend(context.Background(), actor, existing.ID, params)
		require.NoError(t, err)
		assert.True(t, got.Amount.Equal(dec("60")))
	})

	t.Run("MovingEnvelopesLocksBoth", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		other := uuid.New()
		existing := storedExpense(actor, from, payee, "100")

		params := ledger.AmendParams{
			Amount:         dec("100"),
			Date:           existing.Date,
			FromEnvelopeID: &other,
			PayeeID:        &payee,
		}

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.resolver.EXPECT().Envelope(gomock.Any(), other).
			Return(activeEnvelope(ledger.EnvelopeStandard), nil)
		m.resolver.EXPECT().Payee(gomock.Any(), payee).Return(activeEntity(), nil)
		m.tx.EXPECT().LockBalances(gomock.Any(), testBudgetID, gomock.InAnyOrder([]uuid.UUID{from, other})).
			Return(ledger.Balances{
				Available: dec("0"),
				Envelopes: map[uuid.UUID]ledger.EnvelopeBalance{
					from:  {Kind: ledger.EnvelopeStandard, Balance: dec("0")},
					other: {Kind: ledger.EnvelopeStandard, Balance: dec("500")},
				},
			}, nil)
		m.tx.EXPECT().UpdateBalances(gomock.Any(), testBudgetID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, b ledger.Balances) error {
				assert.True(t, b.Envelopes[from].Balance.Equal(dec("100")))
				assert.True(t, b.Envelopes[other].Balance.Equal(dec("400")))
				return nil
			})
		m.tx.EXPECT().UpdateTransaction(gomock.Any(), gomock.Any()).Return(nil)
		m.tx.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).Return(nil)
		m.tx.EXPECT().Commit().Return(nil)
		m.tx.EXPECT().Rollback().Return(nil)

		_, err := svc.Amend(context.Background(), actor, existing.ID, params)
		require.NoError(t, err)
	})

	t.Run("DeletedTransaction", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		existing := storedExpense(actor, from, payee, "100")
		now := time.Now()
		existing.DeletedAt = &now

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.tx.EXPECT().Rollback().Return(nil)

		_, err := svc.Amend(context.Background(), actor, existing.ID, ledger.AmendParams{
			Amount:         dec("60"),
			Date:           existing.Date,
			FromEnvelopeID: &from,
			PayeeID:        &payee,
		})
		assert.ErrorIs(t, err, ledger.ErrAlreadyDeleted)
	})

	t.Run("RevalidatesNewValues", func(t *testing.T) {
		svc, m := newServiceMocks(t)

		existing := storedExpense(actor, from, payee, "100")

		m.repo.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
		m.tx.EXPECT().GetTransactionForUpdate(gomock.Any(), existing.ID).Return(existing, nil)
		m.tx.EXPECT().Rollback().Return(nil)

		// Negative amount and missing refs must fail validation before any
		// balance is locked.
		_, err := svc.Amend(context.Background(), actor, existing.ID, ledger.AmendParams{
			Amount: dec("-5"),
			Date:   existing.Date,
		})

		var vErr *ledger.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

func TestService_Events(t *testing.T) {
	svc, m := newServiceMocks(t)

	id := uuid.New()
	events := []*ledger.Event{{ID: uuid.New(), TransactionID: id, Type: ledger.EventCreated}}

	m.repo.EXPECT().GetTransaction(gomock.Any(), id).Return(&ledger.Transaction{ID: id}, nil)
	m.repo.EXPECT().ListEvents(gomock.Any(), id).Return(events, nil)

	got, err := svc.Events(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestService_Events_UnknownTransaction(t *testing.T) {
	svc, m := newServiceMocks(t)

	id := uuid.New()

	m.repo.EXPECT().GetTransaction(gomock.Any(), id).Return(nil, ledger.ErrNotFound)

	_, err := svc.Events(context.Background(), id)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
