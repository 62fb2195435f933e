package storage

import "time"

// Account represents a user account for the acquisition tool.
type Account struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Role         string     `json:"role"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Run records one completed logging run.
type Run struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Username  string    `json:"username"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Records   uint64    `json:"records"`
	Reason    string    `json:"reason"`
}
