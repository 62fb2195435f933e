package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/endolog/internal/storage"
)

// parseAccount converts a Redis hash to an Account.
func parseAccount(data map[string]string) (*storage.Account, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	active, err := strconv.ParseBool(data["active"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse active: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	account := &storage.Account{
		Username:     data["username"],
		PasswordHash: data["password_hash"],
		Role:         data["role"],
		Active:       active,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}

	if raw, ok := data["last_login"]; ok && raw != "" {
		lastLogin, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_login: %w", err)
		}
		account.LastLogin = &lastLogin
	}

	return account, nil
}

// parseRun converts a Redis hash to a Run.
func parseRun(data map[string]string) (*storage.Run, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	startedAt, err := time.Parse(time.RFC3339Nano, data["started_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	stoppedAt, err := time.Parse(time.RFC3339Nano, data["stopped_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse stopped_at: %w", err)
	}

	records, err := strconv.ParseUint(data["records"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}

	return &storage.Run{
		ID:        data["id"],
		Path:      data["path"],
		Username:  data["username"],
		StartedAt: startedAt,
		StoppedAt: stoppedAt,
		Records:   records,
		Reason:    data["reason"],
	}, nil
}
