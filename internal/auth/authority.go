package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/endolog/internal/events"
	"github.com/goodtune/endolog/internal/metrics"
	"github.com/goodtune/endolog/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultSessionTimeout is the sliding expiry applied when none is
	// configured.
	DefaultSessionTimeout = 30 * time.Minute

	// BcryptCost is the cost factor for bcrypt password hashing.
	BcryptCost = 12
)

// Session is the single live authenticated context. The role is a snapshot
// taken at login.
type Session struct {
	Username     string
	Role         Role
	LoginTime    time.Time
	LastActivity time.Time
}

// Config holds authority configuration.
type Config struct {
	SessionTimeout time.Duration
	Clock          Clock
}

// Authority owns the process-wide session and answers every permission
// question. At most one session exists; everyone else is a guest.
type Authority struct {
	accounts storage.AccountStore
	timeout  time.Duration
	clock    Clock
	notifier events.Listener
	logger   zerolog.Logger

	mu      sync.Mutex
	session *Session
}

// New creates a session authority backed by an account store.
func New(accounts storage.AccountStore, cfg Config, notifier events.Listener, logger zerolog.Logger) *Authority {
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if notifier == nil {
		notifier = events.Nop{}
	}

	return &Authority{
		accounts: accounts,
		timeout:  cfg.SessionTimeout,
		clock:    cfg.Clock,
		notifier: notifier,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Login authenticates a user and installs the session. It reports success as
// a boolean: absent accounts, inactive accounts, and wrong passwords all
// fail the same way. Repeated attempts are not throttled.
func (a *Authority) Login(ctx context.Context, username, password string) bool {
	account, err := a.accounts.Get(ctx, username)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Error().Err(err).Str("username", username).Msg("Account lookup failed")
		}
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return false
	}

	if !account.Active {
		a.logger.Warn().Str("username", username).Msg("Login rejected for inactive account")
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return false
	}

	if err := VerifyPassword(password, account.PasswordHash); err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return false
	}

	now := a.clock.Now()
	role := ParseRole(account.Role)

	a.mu.Lock()
	a.session = &Session{
		Username:     username,
		Role:         role,
		LoginTime:    now,
		LastActivity: now,
	}
	a.mu.Unlock()

	if err := a.accounts.UpdateLastLogin(ctx, username, now); err != nil {
		// Best-effort bookkeeping, never fails the login.
		a.logger.Error().Err(err).Str("username", username).Msg("Failed to record last login")
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	a.logger.Info().Str("username", username).Str("role", role.String()).Msg("User logged in")
	a.notifier.RoleChanged(username, role.String())

	return true
}

// Logout clears the session. The process reverts to implicit guest.
func (a *Authority) Logout() {
	a.mu.Lock()
	username := ""
	if a.session != nil {
		username = a.session.Username
	}
	a.session = nil
	a.mu.Unlock()

	if username != "" {
		a.logger.Info().Str("username", username).Msg("User logged out")
	}
	a.notifier.RoleChanged("", RoleGuest.String())
}

// Touch resets the inactivity clock. Every operation representing a live
// user interaction must call this.
func (a *Authority) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		a.session.LastActivity = a.clock.Now()
	}
}

// CurrentRole returns the effective role. Expiry is checked lazily on every
// read; an expired session is logged out as a side effect and reads as
// guest.
func (a *Authority) CurrentRole() Role {
	session, expired := a.checkExpiry()
	if expired {
		metrics.SessionsExpired.Inc()
		a.logger.Info().Str("username", session.Username).Msg("Session expired")
		a.notifier.SessionExpired(session.Username)
		a.notifier.RoleChanged("", RoleGuest.String())
		return RoleGuest
	}
	if session == nil {
		return RoleGuest
	}
	return session.Role
}

// CurrentUsername returns the session's username, or "" when no valid
// session exists.
func (a *Authority) CurrentUsername() string {
	session, expired := a.checkExpiry()
	if expired {
		metrics.SessionsExpired.Inc()
		a.notifier.SessionExpired(session.Username)
		a.notifier.RoleChanged("", RoleGuest.String())
		return ""
	}
	if session == nil {
		return ""
	}
	return session.Username
}

// checkExpiry clears the session if it has outlived the inactivity timeout.
// It returns the session that expired (if any) so callers can report it
// without holding the lock.
func (a *Authority) checkExpiry() (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return nil, false
	}
	if a.clock.Now().Sub(a.session.LastActivity) > a.timeout {
		expired := a.session
		a.session = nil
		return expired, true
	}
	return a.session, false
}

// HasPermission reports whether the current role may perform an action.
// Unknown actions deny by default.
func (a *Authority) HasPermission(action Action) bool {
	min, ok := MinimumRole(action)
	if !ok {
		return false
	}
	return a.CurrentRole().AtLeast(min)
}

// RequirePermission returns a PermissionError when the current role is below
// the threshold for an action.
func (a *Authority) RequirePermission(action Action) error {
	if a.HasPermission(action) {
		return nil
	}
	metrics.PermissionDenials.WithLabelValues(string(action)).Inc()
	return &PermissionError{Action: action, Role: a.CurrentRole()}
}

// AddUser creates an account. Requires the userManagement permission.
func (a *Authority) AddUser(ctx context.Context, username, password string, role Role) error {
	a.Touch()
	if err := a.RequirePermission(ActionUserManagement); err != nil {
		return err
	}

	if _, err := a.accounts.Get(ctx, username); err == nil {
		return ErrAccountExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("check existing account: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	account := storage.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         role.String(),
		Active:       true,
	}

	if err := a.accounts.Upsert(ctx, account); err != nil {
		metrics.CredentialWriteFailures.Inc()
		return fmt.Errorf("persist account: %w", err)
	}

	a.logger.Info().
		Str("username", username).
		Str("role", role.String()).
		Str("by", a.CurrentUsername()).
		Msg("Account created")

	return nil
}

// RemoveUser deletes an account. Requires the userManagement permission and
// always fails for the session's own account.
func (a *Authority) RemoveUser(ctx context.Context, username string) error {
	a.Touch()
	if err := a.RequirePermission(ActionUserManagement); err != nil {
		return err
	}
	if username == a.CurrentUsername() {
		return ErrOwnAccount
	}

	if err := a.accounts.Delete(ctx, username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		metrics.CredentialWriteFailures.Inc()
		return fmt.Errorf("delete account: %w", err)
	}

	a.logger.Info().
		Str("username", username).
		Str("by", a.CurrentUsername()).
		Msg("Account removed")

	return nil
}

// ChangePassword performs a self-service password change: the old password
// must verify against the stored hash. Admin-initiated resets go through
// ResetPassword instead.
func (a *Authority) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	a.Touch()

	if username != a.CurrentUsername() {
		if err := a.RequirePermission(ActionUserManagement); err != nil {
			return err
		}
	}

	account, err := a.accounts.Get(ctx, username)
	if err != nil {
		return err
	}

	if err := VerifyPassword(oldPassword, account.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	account.PasswordHash = hash

	if err := a.accounts.Upsert(ctx, *account); err != nil {
		metrics.CredentialWriteFailures.Inc()
		return fmt.Errorf("persist account: %w", err)
	}

	a.logger.Info().Str("username", username).Msg("Password changed")
	return nil
}

// ResetPassword replaces an account's password without the old one. It is an
// admin operation with its own audit trail, distinct from ChangePassword.
func (a *Authority) ResetPassword(ctx context.Context, username, newPassword string) error {
	a.Touch()
	if err := a.RequirePermission(ActionUserManagement); err != nil {
		return err
	}

	account, err := a.accounts.Get(ctx, username)
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	account.PasswordHash = hash

	if err := a.accounts.Upsert(ctx, *account); err != nil {
		metrics.CredentialWriteFailures.Inc()
		return fmt.Errorf("persist account: %w", err)
	}

	a.logger.Info().
		Str("username", username).
		Str("by", a.CurrentUsername()).
		Msg("Password reset")

	return nil
}

// ToggleActive flips an account's active flag. Requires the userManagement
// permission and always fails for the session's own account.
func (a *Authority) ToggleActive(ctx context.Context, username string) error {
	a.Touch()
	if err := a.RequirePermission(ActionUserManagement); err != nil {
		return err
	}
	if username == a.CurrentUsername() {
		return ErrOwnAccount
	}

	account, err := a.accounts.Get(ctx, username)
	if err != nil {
		return err
	}
	account.Active = !account.Active

	if err := a.accounts.Upsert(ctx, *account); err != nil {
		metrics.CredentialWriteFailures.Inc()
		return fmt.Errorf("persist account: %w", err)
	}

	a.logger.Info().
		Str("username", username).
		Bool("active", account.Active).
		Str("by", a.CurrentUsername()).
		Msg("Account active flag toggled")

	return nil
}
