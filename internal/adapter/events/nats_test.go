package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chainpay-reconciler/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.subject = subj
	f.data = data
	return f.err
}

func TestPublisher_PublishStatusChange(t *testing.T) {
	conn := &fakeConn{}
	pub := NewPublisher(conn, "transactions.status_changed")
	change := domain.StatusChange{
		Hash:      "ABCD",
		Owner:     "xion1me",
		From:      domain.TransactionStatusPending,
		To:        domain.TransactionStatusConfirmed,
		Height:    812,
		ChangedAt: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}

	require.NoError(t, pub.PublishStatusChange(context.Background(), change))
	assert.Equal(t, "transactions.status_changed", conn.subject)

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, "transaction.status_changed", got["type"])
	assert.Equal(t, "ABCD", got["hash"])
	assert.Equal(t, "pending", got["from"])
	assert.Equal(t, "confirmed", got["to"])
}

func TestPublisher_PublishError(t *testing.T) {
	pub := NewPublisher(&fakeConn{err: errors.New("nats: connection closed")}, "s")

	err := pub.PublishStatusChange(context.Background(), domain.StatusChange{Hash: "ABCD"})
	assert.ErrorContains(t, err, "connection closed")
}

func TestPublisher_CancelledContext(t *testing.T) {
	conn := &fakeConn{}
	pub := NewPublisher(conn, "s")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pub.PublishStatusChange(ctx, domain.StatusChange{}), context.Canceled)
	assert.Nil(t, conn.data)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.PublishStatusChange(context.Background(), domain.StatusChange{}))
}
