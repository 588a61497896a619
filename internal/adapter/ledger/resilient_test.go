package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chainpay-reconciler/config"
	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports/mocks"
	"chainpay-reconciler/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingCollector struct {
	metrics.NoOpCollector
	mu     sync.Mutex
	calls  map[string]int
	states []metrics.CircuitState
}

func (c *recordingCollector) RecordLedgerCall(op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	key := op + ":ok"
	if !success {
		key = op + ":err"
	}
	c.calls[key]++
}

func (c *recordingCollector) RecordCircuitState(_ string, state metrics.CircuitState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, state)
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		Timeout: time.Second,
		Breaker: config.BreakerConfig{
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             time.Minute,
			ConsecutiveFailures: 3,
		},
	}
}

func TestResilientClient_PassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockLedgerClient(ctrl)
	collector := &recordingCollector{}
	rc := NewResilientClient(next, testLedgerConfig(), collector, zerolog.Nop())

	next.EXPECT().GetBlockHeight(gomock.Any()).Return(int64(42), nil)

	h, err := rc.GetBlockHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), h)
	assert.NoError(t, rc.Ping(context.Background()))
	assert.Equal(t, 1, collector.calls["get_block_height:ok"])
}

func TestResilientClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockLedgerClient(ctrl)
	collector := &recordingCollector{}
	rc := NewResilientClient(next, testLedgerConfig(), collector, zerolog.Nop())

	down := &domain.NetworkError{Op: "get_balances", URL: "http://ledger", StatusCode: 503, Err: errors.New("unavailable")}
	next.EXPECT().GetBalances(gomock.Any(), "xion1a").Return(nil, down).Times(3)

	for i := 0; i < 3; i++ {
		_, err := rc.GetBalances(context.Background(), "xion1a")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, rc.State())
	assert.Equal(t, []metrics.CircuitState{metrics.CircuitOpen}, collector.states)
	assert.Equal(t, "ledger", rc.Name())
	assert.ErrorContains(t, rc.Ping(context.Background()), "circuit breaker open")

	// Open breaker rejects without reaching the ledger.
	_, err := rc.GetBalances(context.Background(), "xion1a")
	var ne *domain.NetworkError
	require.ErrorAs(t, err, &ne)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestResilientClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockLedgerClient(ctrl)
	rc := NewResilientClient(next, testLedgerConfig(), nil, zerolog.Nop())

	notFound := &domain.NetworkError{Op: "get_transaction", StatusCode: 404, Err: errors.New("tx not found")}
	next.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).Return(nil, notFound).Times(5)

	for i := 0; i < 5; i++ {
		_, err := rc.GetTransaction(context.Background(), "ABCD")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, rc.State())
}

func TestResilientClient_TimeoutIsNetworkError(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockLedgerClient(ctrl)
	cfg := testLedgerConfig()
	cfg.Timeout = 20 * time.Millisecond
	rc := NewResilientClient(next, cfg, nil, zerolog.Nop())

	next.EXPECT().GetBlockHeight(gomock.Any()).DoAndReturn(func(ctx context.Context) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	_, err := rc.GetBlockHeight(context.Background())
	assert.True(t, domain.IsNetworkError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResilientClient_GetTransactionSharesInflightLookups(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockLedgerClient(ctrl)
	rc := NewResilientClient(next, testLedgerConfig(), nil, zerolog.Nop())

	release := make(chan struct{})
	code := uint32(0)
	next.EXPECT().GetTransaction(gomock.Any(), "ABCD").DoAndReturn(func(context.Context, string) (*domain.TxResult, error) {
		<-release
		return &domain.TxResult{Hash: "ABCD", Code: &code}, nil
	}).MinTimes(1).MaxTimes(2)

	var wg sync.WaitGroup
	results := make([]*domain.TxResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := rc.GetTransaction(context.Background(), "ABCD")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "ABCD", res.Hash)
	}
}
