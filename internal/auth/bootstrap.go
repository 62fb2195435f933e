package auth

import (
	"context"

	"github.com/goodtune/endolog/internal/storage"
	"github.com/rs/zerolog"
)

// Default accounts seeded into an empty credential store. These are the
// documented first-run credentials and should be changed immediately.
var defaultAccounts = []struct {
	username string
	password string
	role     Role
}{
	{"admin", "admin123", RoleAdmin},
	{"user", "user123", RoleUser},
}

// EnsureDefaultAccounts seeds the bootstrap accounts if the store holds no
// accounts at all. An already-populated store is left untouched.
func EnsureDefaultAccounts(ctx context.Context, accounts storage.AccountStore, logger zerolog.Logger) error {
	existing, err := accounts.List(ctx)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		logger.Debug().Int("count", len(existing)).Msg("Accounts already exist")
		return nil
	}

	for _, seed := range defaultAccounts {
		hash, err := HashPassword(seed.password)
		if err != nil {
			return err
		}

		account := storage.Account{
			Username:     seed.username,
			PasswordHash: hash,
			Role:         seed.role.String(),
			Active:       true,
		}

		if err := accounts.Upsert(ctx, account); err != nil {
			return err
		}

		logger.Info().
			Str("username", seed.username).
			Str("role", seed.role.String()).
			Msg("Seeded default account")
	}

	logger.Warn().Msg("Default credentials are in use, change them immediately")
	return nil
}
