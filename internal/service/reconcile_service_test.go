package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chainpay-reconciler/internal/adapter/storage/badgerstore"
	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports/mocks"
	"chainpay-reconciler/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testOwner = "xion1owner"

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type reconcileDeps struct {
	store  *mocks.MockTransactionStore
	ledger *mocks.MockLedgerClient
	lock   *mocks.MockReconcileLock
	events *mocks.MockEventPublisher
}

func setupReconcileService(t *testing.T, opts ReconcileOptions) (*ReconcileServiceImpl, reconcileDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := reconcileDeps{
		store:  mocks.NewMockTransactionStore(ctrl),
		ledger: mocks.NewMockLedgerClient(ctrl),
		lock:   mocks.NewMockReconcileLock(ctrl),
		events: mocks.NewMockEventPublisher(ctrl),
	}
	svc := NewReconcileService(deps.store, deps.ledger, deps.lock, deps.events, nil, opts, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, deps
}

func expectLock(deps reconcileDeps) {
	deps.lock.EXPECT().Acquire(gomock.Any(), testOwner, gomock.Any()).Return("tok", true, nil)
	deps.lock.EXPECT().Release(gomock.Any(), testOwner, "tok").Return(nil)
}

func pendingTx(hash string) domain.Transaction {
	return domain.Transaction{
		Hash:      hash,
		Owner:     testOwner,
		Sender:    testOwner,
		Recipient: "xion1recipient",
		Amount:    decimal.RequireFromString("1"),
		Currency:  "XION",
		Status:    domain.TransactionStatusPending,
		CreatedAt: testNow.Add(-time.Minute),
		UpdatedAt: testNow.Add(-time.Minute),
	}
}

func txResult(hash string, code *uint32) *domain.TxResult {
	return &domain.TxResult{Hash: hash, Height: 100, Code: code}
}

func code(c uint32) *uint32 {
	return &c
}

func TestReconcile_EmptyPendingMakesNoLedgerCalls(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	expectLock(deps)
	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{}, nil)
	// No ledger expectations: any call fails the test.

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, 0, report.Scanned)
	assert.False(t, report.Degraded())
	assert.False(t, report.Skipped)
}

func TestReconcile_ReportsDuration(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	clock := testNow
	svc.now = func() time.Time {
		clock = clock.Add(250 * time.Millisecond)
		return clock
	}
	expectLock(deps)
	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{}, nil)

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, 250*time.Millisecond, report.Duration)
}

func TestReconcile_CodeMapping(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	expectLock(deps)

	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{
		pendingTx("AA"), pendingTx("BB"), pendingTx("CC"),
	}, nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "AA").Return(txResult("AA", code(0)), nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "BB").Return(txResult("BB", code(11)), nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "CC").Return(txResult("CC", nil), nil)

	deps.store.EXPECT().UpdateStatus(gomock.Any(), "AA", domain.TransactionStatusConfirmed).Return(true, nil)
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "BB", domain.TransactionStatusFailed).Return(true, nil)

	deps.events.EXPECT().PublishStatusChange(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c domain.StatusChange) error {
			assert.Equal(t, domain.TransactionStatusPending, c.From)
			assert.Equal(t, testOwner, c.Owner)
			assert.Equal(t, int64(100), c.Height)
			return nil
		}).Times(2)

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.StillPending)
	assert.Equal(t, 2, report.Updated())
	assert.False(t, report.Degraded())
}

func TestReconcile_PartialFailureIsolation(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{Concurrency: 2})
	expectLock(deps)

	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{
		pendingTx("A1"), pendingTx("K"), pendingTx("A3"),
	}, nil)
	netErr := &domain.NetworkError{Op: "get_transaction", StatusCode: 503, Err: errors.New("unavailable")}
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "A1").Return(txResult("A1", code(0)), nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "K").Return(nil, netErr)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "A3").Return(txResult("A3", code(0)), nil)

	deps.store.EXPECT().UpdateStatus(gomock.Any(), "A1", domain.TransactionStatusConfirmed).Return(true, nil)
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "A3", domain.TransactionStatusConfirmed).Return(true, nil)
	deps.events.EXPECT().PublishStatusChange(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, 2, report.Confirmed)
	require.Contains(t, report.LookupErrors, "K")
	assert.True(t, domain.IsNetworkError(report.LookupErrors["K"]))
	assert.True(t, report.Degraded())
}

func TestReconcile_NotFoundStaysPending(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	expectLock(deps)

	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{pendingTx("NF")}, nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "NF").
		Return(nil, &domain.NetworkError{Op: "get_transaction", StatusCode: 404, Err: errors.New("tx not found")})

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Len(t, report.LookupErrors, 1)
	assert.Equal(t, 0, report.Updated())
}

func TestReconcile_WriteErrorIsReported(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	expectLock(deps)

	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{pendingTx("W1"), pendingTx("W2")}, nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, hash string) (*domain.TxResult, error) {
			return txResult(hash, code(0)), nil
		}).Times(2)

	swe := &domain.StorageWriteError{Hash: "W1", Op: "update_status", Err: errors.New("disk full")}
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "W1", domain.TransactionStatusConfirmed).Return(false, swe)
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "W2", domain.TransactionStatusConfirmed).Return(true, nil)
	deps.events.EXPECT().PublishStatusChange(gomock.Any(), gomock.Any()).Return(nil)

	report := svc.Reconcile(context.Background(), testOwner)
	require.Len(t, report.WriteErrors, 1)
	assert.Equal(t, "W1", report.WriteErrors[0].Hash)
	assert.Equal(t, 1, report.Confirmed)
	assert.True(t, report.Degraded())
}

func TestReconcile_AlreadyFinalisedIsUnchanged(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	expectLock(deps)

	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{pendingTx("U1")}, nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "U1").Return(txResult("U1", code(0)), nil)
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "U1", domain.TransactionStatusConfirmed).Return(false, nil)
	// No event for a write that did not apply.

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Confirmed)
}

func TestReconcile_EventFailureDoesNotFailPass(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	expectLock(deps)

	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{pendingTx("E1")}, nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "E1").Return(txResult("E1", code(0)), nil)
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "E1", domain.TransactionStatusConfirmed).Return(true, nil)
	deps.events.EXPECT().PublishStatusChange(gomock.Any(), gomock.Any()).Return(errors.New("nats: timeout"))

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, 1, report.Confirmed)
	assert.False(t, report.Degraded())
}

func TestReconcile_LockHeldSkipsPass(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	deps.lock.EXPECT().Acquire(gomock.Any(), testOwner, gomock.Any()).Return("", false, nil)
	// No store or ledger expectations.

	report := svc.Reconcile(context.Background(), testOwner)
	assert.True(t, report.Skipped)
	assert.Equal(t, 0, report.Scanned)
}

func TestReconcile_LockErrorContinuesUnlocked(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	deps.lock.EXPECT().Acquire(gomock.Any(), testOwner, gomock.Any()).Return("", false, errors.New("redis down"))
	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return(nil, nil)

	report := svc.Reconcile(context.Background(), testOwner)
	assert.False(t, report.Skipped)
	assert.NoError(t, report.ListErr)
}

func TestReconcile_ListErrorIsReported(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	expectLock(deps)
	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return(nil, errors.New("connection refused"))

	report := svc.Reconcile(context.Background(), testOwner)
	assert.EqualError(t, report.ListErr, "connection refused")
	assert.True(t, report.Degraded())
}

func TestReconcile_StaleRecordsAreReportedNotChanged(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{StaleAfter: 24 * time.Hour})
	expectLock(deps)

	old := pendingTx("OLD")
	old.CreatedAt = testNow.Add(-48 * time.Hour)
	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return([]domain.Transaction{old, pendingTx("NEW")}, nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, hash string) (*domain.TxResult, error) {
			return txResult(hash, nil), nil
		}).Times(2)

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, []string{"OLD"}, report.Stale)
	assert.Equal(t, 2, report.StillPending)
}

func TestReconcile_StaleOnlyWhenStillPending(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{StaleAfter: 24 * time.Hour})
	expectLock(deps)

	var old []domain.Transaction
	for _, h := range []string{"0A", "0B", "0C", "0D"} {
		tx := pendingTx(h)
		tx.CreatedAt = testNow.Add(-48 * time.Hour)
		old = append(old, tx)
	}
	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return(old, nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "0A").Return(txResult("0A", code(0)), nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "0B").Return(txResult("0B", code(7)), nil)
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "0C").Return(nil, &domain.NetworkError{Op: "get_transaction", StatusCode: 404, Err: errors.New("not found")})
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), "0D").Return(txResult("0D", code(0)), nil)
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "0A", domain.TransactionStatusConfirmed).Return(true, nil)
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "0B", domain.TransactionStatusFailed).Return(true, nil)
	deps.store.EXPECT().UpdateStatus(gomock.Any(), "0D", domain.TransactionStatusConfirmed).
		Return(false, &domain.StorageWriteError{Hash: "0D", Op: "update_status", Err: errors.New("disk full")})
	deps.events.EXPECT().PublishStatusChange(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 1, report.Failed)
	assert.ElementsMatch(t, []string{"0C", "0D"}, report.Stale, "finalised records are never stale")
}

type staleGaugeRecorder struct {
	metrics.NoOpCollector
	mu  sync.Mutex
	set []int
}

func (r *staleGaugeRecorder) RecordStalePending(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = append(r.set, n)
}

func TestReconcileAll_StaleGaugeSumsOwnersOncePerSweep(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockTransactionStore(ctrl)
	ledger := mocks.NewMockLedgerClient(ctrl)
	recorder := &staleGaugeRecorder{}
	svc := NewReconcileService(store, ledger, nil, nil, recorder, ReconcileOptions{StaleAfter: time.Hour}, zerolog.Nop())
	svc.now = func() time.Time { return testNow }

	oldA := pendingTx("0A")
	oldA.Owner = "xion1a"
	oldA.CreatedAt = testNow.Add(-2 * time.Hour)
	oldB := pendingTx("0B")
	oldB.Owner = "xion1b"
	oldB.CreatedAt = testNow.Add(-2 * time.Hour)
	oldC := oldB
	oldC.Hash = "0C"

	store.EXPECT().ListPendingOwners(gomock.Any()).Return([]string{"xion1a", "xion1b", "xion1c"}, nil)
	store.EXPECT().ListPending(gomock.Any(), "xion1a").Return([]domain.Transaction{oldA}, nil)
	store.EXPECT().ListPending(gomock.Any(), "xion1b").Return([]domain.Transaction{oldB, oldC}, nil)
	store.EXPECT().ListPending(gomock.Any(), "xion1c").Return(nil, nil)
	ledger.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, hash string) (*domain.TxResult, error) {
			return txResult(hash, nil), nil
		}).Times(3)

	svc.ReconcileAll(context.Background())
	assert.Equal(t, []int{3}, recorder.set, "the last owner must not overwrite earlier counts")

	store.EXPECT().ListPendingOwners(gomock.Any()).Return(nil, nil)
	svc.ReconcileAll(context.Background())
	assert.Equal(t, []int{3, 0}, recorder.set, "an empty sweep resets the gauge")
}

func TestReconcile_BoundedConcurrencyAndLookupsBeforeWrites(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{Concurrency: 2, LookupTimeout: time.Second})
	svc.lock = nil
	svc.events = nil

	pending := make([]domain.Transaction, 6)
	for i := range pending {
		pending[i] = pendingTx(string(rune('A'+i)) + "0")
	}
	deps.store.EXPECT().ListPending(gomock.Any(), testOwner).Return(pending, nil)

	var inflight, maxInflight, done int32
	deps.ledger.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, hash string) (*domain.TxResult, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)

			n := atomic.AddInt32(&inflight, 1)
			for {
				m := atomic.LoadInt32(&maxInflight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInflight, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inflight, -1)
			atomic.AddInt32(&done, 1)
			return txResult(hash, code(0)), nil
		}).Times(6)

	deps.store.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), domain.TransactionStatusConfirmed).DoAndReturn(
		func(context.Context, string, domain.TransactionStatus) (bool, error) {
			assert.Equal(t, int32(6), atomic.LoadInt32(&done), "all lookups finish before the first write")
			return true, nil
		}).Times(6)

	report := svc.Reconcile(context.Background(), testOwner)
	assert.Equal(t, 6, report.Confirmed)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInflight), int32(2))
}

func TestReconcileAll(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	svc.lock = nil

	deps.store.EXPECT().ListPendingOwners(gomock.Any()).Return([]string{"xion1a", "xion1b"}, nil)
	deps.store.EXPECT().ListPending(gomock.Any(), "xion1a").Return(nil, nil)
	deps.store.EXPECT().ListPending(gomock.Any(), "xion1b").Return(nil, nil)

	reports := svc.ReconcileAll(context.Background())
	require.Len(t, reports, 2)
	assert.Equal(t, "xion1a", reports[0].Owner)
	assert.Equal(t, "xion1b", reports[1].Owner)
}

func TestReconcileAll_ListOwnersError(t *testing.T) {
	svc, deps := setupReconcileService(t, ReconcileOptions{})
	deps.store.EXPECT().ListPendingOwners(gomock.Any()).Return(nil, errors.New("db down"))

	reports := svc.ReconcileAll(context.Background())
	require.Len(t, reports, 1)
	assert.Error(t, reports[0].ListErr)
}

// The tests below run against a real embedded store.

func setupStoreBackedReconcile(t *testing.T) (*ReconcileServiceImpl, *badgerstore.TransactionStore, *mocks.MockLedgerClient) {
	t.Helper()
	db, err := badgerstore.Open("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := badgerstore.NewTransactionStore(db)
	ledger := mocks.NewMockLedgerClient(gomock.NewController(t))
	svc := NewReconcileService(store, ledger, nil, nil, nil, ReconcileOptions{Concurrency: 4}, zerolog.Nop())
	return svc, store, ledger
}

func TestReconcile_IdempotentAndMonotonic(t *testing.T) {
	svc, store, ledger := setupStoreBackedReconcile(t)
	ctx := context.Background()

	for _, h := range []string{"0A", "0B", "0C"} {
		tx := pendingTx(h)
		require.NoError(t, store.Append(ctx, &tx))
	}

	var mu sync.Mutex
	codes := map[string]*uint32{"0A": code(0), "0B": code(3), "0C": nil}
	ledger.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, hash string) (*domain.TxResult, error) {
			mu.Lock()
			defer mu.Unlock()
			return txResult(hash, codes[hash]), nil
		}).AnyTimes()

	first := svc.Reconcile(ctx, testOwner)
	assert.Equal(t, 1, first.Confirmed)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, 1, first.StillPending)

	snapshot := func() map[string]domain.TransactionStatus {
		out := map[string]domain.TransactionStatus{}
		for _, h := range []string{"0A", "0B", "0C"} {
			tx, err := store.GetByHash(ctx, h)
			require.NoError(t, err)
			out[h] = tx.Status
		}
		return out
	}
	afterFirst := snapshot()

	second := svc.Reconcile(ctx, testOwner)
	assert.Equal(t, 0, second.Updated())
	assert.Equal(t, afterFirst, snapshot(), "second pass changes nothing")

	// Even if the ledger later reports something different, terminal records stay put.
	mu.Lock()
	codes["0A"], codes["0B"] = code(9), code(0)
	mu.Unlock()
	third := svc.Reconcile(ctx, testOwner)
	assert.Equal(t, 0, third.Updated())
	assert.Equal(t, domain.TransactionStatusConfirmed, snapshot()["0A"])
	assert.Equal(t, domain.TransactionStatusFailed, snapshot()["0B"])
}
