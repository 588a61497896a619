package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupLedgerService(t *testing.T) (*LedgerServiceImpl, *mocks.MockLedgerClient, *mocks.MockBalanceCache) {
	t.Helper()
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerClient(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)
	svc := NewLedgerService(ledger, cache, 30*time.Second, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, ledger, cache
}

func TestBalances_CacheHit(t *testing.T) {
	svc, _, cache := setupLedgerService(t)
	cached := &domain.BalanceSnapshot{Address: "xion1a", Balances: []domain.Balance{{Denom: "uxion", Amount: "5"}}}
	cache.EXPECT().Get(gomock.Any(), "xion1a").Return(cached, nil)

	snap, err := svc.Balances(context.Background(), "xion1a")
	require.NoError(t, err)
	assert.Same(t, cached, snap)
}

func TestBalances_CacheMissFillsCache(t *testing.T) {
	svc, ledger, cache := setupLedgerService(t)
	balances := []domain.Balance{{Denom: "uxion", Amount: "5"}}

	cache.EXPECT().Get(gomock.Any(), "xion1a").Return(nil, nil)
	ledger.EXPECT().GetBalances(gomock.Any(), "xion1a").Return(balances, nil)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), 30*time.Second).DoAndReturn(
		func(_ context.Context, s *domain.BalanceSnapshot, _ time.Duration) error {
			assert.Equal(t, testNow, s.FetchedAt)
			return nil
		})

	snap, err := svc.Balances(context.Background(), "xion1a")
	require.NoError(t, err)
	assert.Equal(t, balances, snap.Balances)
}

func TestBalances_CacheErrorFallsThrough(t *testing.T) {
	svc, ledger, cache := setupLedgerService(t)
	cache.EXPECT().Get(gomock.Any(), "xion1a").Return(nil, errors.New("redis down"))
	ledger.EXPECT().GetBalances(gomock.Any(), "xion1a").Return([]domain.Balance{}, nil)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	_, err := svc.Balances(context.Background(), "xion1a")
	require.NoError(t, err)
}

func TestBalances_NoCache(t *testing.T) {
	ledger := mocks.NewMockLedgerClient(gomock.NewController(t))
	svc := NewLedgerService(ledger, nil, 0, zerolog.Nop())
	ledger.EXPECT().GetBalances(gomock.Any(), "xion1a").Return(nil, &domain.NetworkError{Op: "get_balances", Err: errors.New("timeout")})

	_, err := svc.Balances(context.Background(), "xion1a")
	assertAppCode(t, err, "LEDGER_001")
}

func TestTransaction(t *testing.T) {
	svc, ledger, _ := setupLedgerService(t)

	ledger.EXPECT().GetTransaction(gomock.Any(), "ABCDEF").Return(txResult("ABCDEF", code(0)), nil)
	res, err := svc.Transaction(context.Background(), "0xabcdef")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", res.Hash)

	ledger.EXPECT().GetTransaction(gomock.Any(), "FF").
		Return(nil, &domain.NetworkError{Op: "get_transaction", StatusCode: 404, Err: errors.New("not found")})
	_, err = svc.Transaction(context.Background(), "ff")
	assertAppCode(t, err, "LEDGER_002")

	_, err = svc.Transaction(context.Background(), "not-hex")
	assertAppCode(t, err, "PAY_002")
}

func TestBlockHeight(t *testing.T) {
	svc, ledger, _ := setupLedgerService(t)
	ledger.EXPECT().GetBlockHeight(gomock.Any()).Return(int64(1234), nil)

	h, err := svc.BlockHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), h)
}

func TestNotFoundOutsideTxLookupIsLedgerUnavailable(t *testing.T) {
	ledger := mocks.NewMockLedgerClient(gomock.NewController(t))
	svc := NewLedgerService(ledger, nil, 0, zerolog.Nop())
	notFound := &domain.NetworkError{Op: "get_block_height", StatusCode: 404, Err: errors.New("not implemented")}

	ledger.EXPECT().GetBalances(gomock.Any(), "xion1a").Return(nil, notFound)
	_, err := svc.Balances(context.Background(), "xion1a")
	assertAppCode(t, err, "LEDGER_001")

	ledger.EXPECT().GetBlockHeight(gomock.Any()).Return(int64(0), notFound)
	_, err = svc.BlockHeight(context.Background())
	assertAppCode(t, err, "LEDGER_001")

	ledger.EXPECT().ListTransfers(gomock.Any(), "xion1a", 5).Return(nil, notFound)
	_, err = svc.History(context.Background(), "xion1a", 5)
	assertAppCode(t, err, "LEDGER_001")
}

func TestHistory(t *testing.T) {
	svc, ledger, _ := setupLedgerService(t)

	_, err := svc.History(context.Background(), "", 10)
	assertAppCode(t, err, "PAY_002")

	records := []domain.TransferRecord{{Hash: "AA"}}
	ledger.EXPECT().ListTransfers(gomock.Any(), "xion1a", 10).Return(records, nil)
	got, err := svc.History(context.Background(), "xion1a", 10)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}
