package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/endolog/internal/storage"
	"github.com/redis/go-redis/v9"
)

const accountsSet = "endolog:accounts"

type accountStore struct {
	client *redis.Client
}

func accountKey(username string) string {
	return fmt.Sprintf("endolog:account:%s", username)
}

// Get retrieves an account by username.
func (s *accountStore) Get(ctx context.Context, username string) (*storage.Account, error) {
	data, err := s.client.HGetAll(ctx, accountKey(username)).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return parseAccount(data)
}

// List retrieves all accounts.
func (s *accountStore) List(ctx context.Context) ([]storage.Account, error) {
	usernames, err := s.client.SMembers(ctx, accountsSet).Result()
	if err != nil {
		return nil, err
	}

	if len(usernames) == 0 {
		return []storage.Account{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(usernames))

	for i, username := range usernames {
		cmds[i] = pipe.HGetAll(ctx, accountKey(username))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	accounts := make([]storage.Account, 0, len(usernames))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		account, err := parseAccount(data)
		if err == nil {
			accounts = append(accounts, *account)
		}
	}

	return accounts, nil
}

// Upsert creates or updates an account.
func (s *accountStore) Upsert(ctx context.Context, account storage.Account) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	fields := map[string]any{
		"username":      account.Username,
		"password_hash": account.PasswordHash,
		"role":          account.Role,
		"active":        strconv.FormatBool(account.Active),
		"created_at":    account.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    account.UpdatedAt.Format(time.RFC3339Nano),
	}
	if account.LastLogin != nil {
		fields["last_login"] = account.LastLogin.Format(time.RFC3339Nano)
	}

	if err := s.client.HSet(ctx, accountKey(account.Username), fields).Err(); err != nil {
		return err
	}

	return s.client.SAdd(ctx, accountsSet, account.Username).Err()
}

// Delete removes an account by username.
func (s *accountStore) Delete(ctx context.Context, username string) error {
	deleted, err := s.client.Del(ctx, accountKey(username)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}

	return s.client.SRem(ctx, accountsSet, username).Err()
}

// UpdateLastLogin updates the last login timestamp for an account.
func (s *accountStore) UpdateLastLogin(ctx context.Context, username string, loginTime time.Time) error {
	exists, err := s.client.Exists(ctx, accountKey(username)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return storage.ErrNotFound
	}

	return s.client.HSet(ctx, accountKey(username), map[string]any{
		"last_login": loginTime.Format(time.RFC3339Nano),
		"updated_at": time.Now().Format(time.RFC3339Nano),
	}).Err()
}
