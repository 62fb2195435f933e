package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/endolog/internal/storage"
	"go.etcd.io/bbolt"
)

type accountStore struct {
	db *bbolt.DB
}

// Get retrieves an account by username.
func (s *accountStore) Get(ctx context.Context, username string) (*storage.Account, error) {
	var account storage.Account

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketAccounts))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(username))
		if data == nil {
			return storage.ErrNotFound
		}

		return unmarshal(data, &account)
	})

	if err != nil {
		return nil, err
	}

	return &account, nil
}

// List retrieves all accounts.
func (s *accountStore) List(ctx context.Context) ([]storage.Account, error) {
	return listBucket[storage.Account](ctx, s.db, bucketAccounts)
}

// Upsert creates or updates an account.
func (s *accountStore) Upsert(ctx context.Context, account storage.Account) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketAccounts))
		if bucket == nil {
			return fmt.Errorf("accounts bucket not found")
		}

		data, err := marshal(account)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(account.Username), data)
	})
}

// Delete removes an account by username.
func (s *accountStore) Delete(ctx context.Context, username string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketAccounts))
		if bucket == nil {
			return storage.ErrNotFound
		}

		if bucket.Get([]byte(username)) == nil {
			return storage.ErrNotFound
		}

		return bucket.Delete([]byte(username))
	})
}

// UpdateLastLogin updates the last login timestamp for an account.
func (s *accountStore) UpdateLastLogin(ctx context.Context, username string, loginTime time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketAccounts))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(username))
		if data == nil {
			return storage.ErrNotFound
		}

		var account storage.Account
		if err := unmarshal(data, &account); err != nil {
			return err
		}

		account.LastLogin = &loginTime
		account.UpdatedAt = time.Now()

		newData, err := marshal(account)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(username), newData)
	})
}
