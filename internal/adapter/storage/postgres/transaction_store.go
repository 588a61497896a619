package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const txColumns = `hash, owner, sender, recipient, amount::text, currency, status, height, note, created_at, updated_at`

// TransactionStore implements ports.TransactionStore on PostgreSQL.
type TransactionStore struct {
	pool Pool
	now  func() time.Time
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool Pool) *TransactionStore {
	return &TransactionStore{pool: pool, now: time.Now}
}

// Append inserts a new pending record. A duplicate hash yields domain.ErrDuplicateTransaction.
func (s *TransactionStore) Append(ctx context.Context, t *domain.Transaction) error {
	t.InitPending(s.now().UTC())
	query := `INSERT INTO transactions (hash, owner, sender, recipient, amount, currency, status, height, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		t.Hash, t.Owner, t.Sender, t.Recipient,
		t.Amount.String(), t.Currency, t.Status, t.Height, t.Note,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = domain.ErrDuplicateTransaction
		}
		return &domain.StorageWriteError{Hash: t.Hash, Op: "append", Err: err}
	}
	return nil
}

// ListPending returns the owner's pending records, oldest first.
func (s *TransactionStore) ListPending(ctx context.Context, owner string) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE owner = $1 AND status = 'pending' ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	return collectTransactions(rows)
}

// UpdateStatus moves a pending record to a terminal status. Terminal records
// and non-terminal targets are left untouched and reported as not applied.
func (s *TransactionStore) UpdateStatus(ctx context.Context, hash string, status domain.TransactionStatus) (bool, error) {
	if !domain.TransactionStatusPending.CanTransitionTo(status) {
		return false, nil
	}
	query := `UPDATE transactions SET status = $1, updated_at = $2 WHERE hash = $3 AND status = 'pending'`

	tag, err := s.pool.Exec(ctx, query, status, s.now().UTC(), hash)
	if err != nil {
		return false, &domain.StorageWriteError{Hash: hash, Op: "update_status", Err: err}
	}
	return tag.RowsAffected() > 0, nil
}

// GetByHash fetches one record. Returns nil, nil when absent.
func (s *TransactionStore) GetByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE hash = $1`

	t, err := scanTransaction(s.pool.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// List fetches records with filtering and pagination, newest first.
func (s *TransactionStore) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Owner != "" {
		conditions = append(conditions, fmt.Sprintf("owner = $%d", argIdx))
		args = append(args, params.Owner)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		txColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, params.Offset())

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListPendingOwners returns each owner with at least one pending record.
func (s *TransactionStore) ListPendingOwners(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT owner FROM transactions WHERE status = 'pending' ORDER BY owner`)
	if err != nil {
		return nil, fmt.Errorf("list pending owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner row: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner rows: %w", err)
	}
	return owners, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	txns := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// scanTransaction scans a single row. The amount column is read as text so
// no precision is lost on the way into decimal.Decimal.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var amount string
	err := row.Scan(
		&t.Hash, &t.Owner, &t.Sender, &t.Recipient,
		&amount, &t.Currency, &t.Status, &t.Height, &t.Note,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return t, nil
}
