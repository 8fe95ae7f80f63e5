// Package db persists the lawyer's authentication state in a local SQLite
// database.
package db

import "time"

// AuthRecord is the persisted identity. Only these fields survive a restart.
type AuthRecord struct {
	Token         string
	UserID        string
	Email         string
	Name          string
	Authenticated bool
	UpdatedAt     time.Time
}
