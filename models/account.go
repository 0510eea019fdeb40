package models

import "time"

// Account is the server-side identity record. Each account owns exactly one
// logical dataset; Version is the single source of truth for how much of the
// account's history any device has seen.
type Account struct {
	// UserID is the internal unique identifier of the account.
	UserID int64 `json:"-"`

	// Email is the address the account was created with; unique.
	Email string `json:"email"`

	// Username is the display name derived from the email local part
	// until the user picks one.
	Username string `json:"username"`

	// Version increases by exactly one on every accepted non-empty push.
	Version int64 `json:"version"`

	// UpdatedAt is the time of the last accepted push.
	UpdatedAt time.Time `json:"updated_at"`

	// CreatedAt is the account creation time.
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the name of the database table
// associated with the Account model.
func (a Account) TableName() string {
	return "accounts"
}
