package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"

	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	tx/<hash>                 JSON-encoded domain.Transaction
//	owner/<owner>/<hash>      index of every record by owner
//	pending/<owner>/<hash>    index of pending records, removed on finalisation
const (
	prefixTx      = "tx/"
	prefixOwner   = "owner/"
	prefixPending = "pending/"
)

const maxConflictRetries = 3

// TransactionStore implements ports.TransactionStore on an embedded Badger database.
type TransactionStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(db *badger.DB) *TransactionStore {
	return &TransactionStore{db: db, now: time.Now}
}

func txKey(hash string) []byte {
	return []byte(prefixTx + hash)
}

func ownerKey(owner, hash string) []byte {
	return []byte(prefixOwner + owner + "/" + hash)
}

func pendingKey(owner, hash string) []byte {
	return []byte(prefixPending + owner + "/" + hash)
}

// Append stores a new pending record and its index entries atomically.
func (s *TransactionStore) Append(ctx context.Context, t *domain.Transaction) error {
	t.InitPending(s.now().UTC())
	raw, err := json.Marshal(t)
	if err != nil {
		return &domain.StorageWriteError{Hash: t.Hash, Op: "append", Err: err}
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(txKey(t.Hash))
		if err == nil {
			return domain.ErrDuplicateTransaction
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(txKey(t.Hash), raw); err != nil {
			return err
		}
		if err := txn.Set(ownerKey(t.Owner, t.Hash), nil); err != nil {
			return err
		}
		return txn.Set(pendingKey(t.Owner, t.Hash), nil)
	})
	if err != nil {
		return &domain.StorageWriteError{Hash: t.Hash, Op: "append", Err: err}
	}
	return nil
}

// ListPending returns the owner's pending records, oldest first.
func (s *TransactionStore) ListPending(ctx context.Context, owner string) ([]domain.Transaction, error) {
	txns, err := s.collect(ctx, []byte(prefixPending+owner+"/"))
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].CreatedAt.Before(txns[j].CreatedAt)
	})
	return txns, nil
}

// UpdateStatus moves a pending record to status. Terminal or missing
// records are left untouched and reported as not applied.
func (s *TransactionStore) UpdateStatus(ctx context.Context, hash string, status domain.TransactionStatus) (bool, error) {
	var applied bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		applied = false
		t, err := getTx(txn, hash)
		if err != nil || t == nil {
			return err
		}
		if !t.Status.CanTransitionTo(status) {
			return nil
		}

		t.Status = status
		t.UpdatedAt = s.now().UTC()
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := txn.Set(txKey(hash), raw); err != nil {
			return err
		}
		if err := txn.Delete(pendingKey(t.Owner, hash)); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, &domain.StorageWriteError{Hash: hash, Op: "update_status", Err: err}
	}
	return applied, nil
}

// GetByHash fetches one record. Returns nil, nil when absent.
func (s *TransactionStore) GetByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *domain.Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = getTx(txn, hash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return out, nil
}

// List filters by owner and status, newest first. Without an owner the
// whole record space is scanned.
func (s *TransactionStore) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	prefix := []byte(prefixTx)
	if params.Owner != "" {
		prefix = []byte(prefixOwner + params.Owner + "/")
	}

	all, err := s.collect(ctx, prefix)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	filtered := make([]domain.Transaction, 0, len(all))
	for _, t := range all {
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		filtered = append(filtered, t)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := int64(len(filtered))
	start := params.Offset()
	if start >= len(filtered) {
		return []domain.Transaction{}, total, nil
	}
	end := len(filtered)
	if params.PageSize > 0 && start+params.PageSize < end {
		end = start + params.PageSize
	}
	return filtered[start:end], total, nil
}

// ListPendingOwners returns each owner with at least one pending record.
func (s *TransactionStore) ListPendingOwners(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var owners []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixPending)
		it := txn.NewIterator(opts)
		defer it.Close()

		seen := make(map[string]struct{})
		for it.Rewind(); it.Valid(); it.Next() {
			rest := bytes.TrimPrefix(it.Item().Key(), opts.Prefix)
			owner, _, ok := bytes.Cut(rest, []byte("/"))
			if !ok {
				continue
			}
			if _, dup := seen[string(owner)]; dup {
				continue
			}
			seen[string(owner)] = struct{}{}
			owners = append(owners, string(owner))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pending owners: %w", err)
	}
	sort.Strings(owners)
	return owners, nil
}

// collect resolves every key under prefix to its record. Index keys end in
// the hash; tx/ keys are the records themselves.
func (s *TransactionStore) collect(ctx context.Context, prefix []byte) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txns := make([]domain.Transaction, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		direct := bytes.Equal(prefix, []byte(prefixTx))
		opts.PrefetchValues = direct
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if direct {
				var t domain.Transaction
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &t)
				}); err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				txns = append(txns, t)
				continue
			}

			key := item.Key()
			hash := string(key[bytes.LastIndexByte(key, '/')+1:])
			t, err := getTx(txn, hash)
			if err != nil {
				return err
			}
			if t != nil {
				txns = append(txns, *t)
			}
		}
		return nil
	})
	return txns, err
}

func (s *TransactionStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getTx(txn *badger.Txn, hash string) (*domain.Transaction, error) {
	item, err := txn.Get(txKey(hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t domain.Transaction
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &t)
	}); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", hash, err)
	}
	return &t, nil
}
