package db

import (
	"context"
	"time"
)

// RegistrationStore defines the interface for registration database operations
type RegistrationStore interface {
	// InsertRegistration stores a new registration; ErrDuplicateEmail if the email is taken
	InsertRegistration(ctx context.Context, reg *Registration) error

	// GetRegistrations returns every registration in arrival order, with claims attached
	GetRegistrations(ctx context.Context) ([]Registration, error)

	// GetRegistration returns one registration; ErrNotFound if absent
	GetRegistration(ctx context.Context, id string) (*Registration, error)

	// GetRegistrationByEmail returns one registration; ErrNotFound if absent
	GetRegistrationByEmail(ctx context.Context, email string) (*Registration, error)
}

// ClaimStore defines the interface for portfolio claim database operations
type ClaimStore interface {
	GetClaims(ctx context.Context) ([]PortfolioClaim, error)

	// InsertClaim records a claim atomically. It returns ErrPortfolioTaken if the
	// portfolio is held and ErrAlreadyClaimed if the registration holds another.
	InsertClaim(ctx context.Context, claim *PortfolioClaim) error

	// ConfirmClaim marks the registration's claim confirmed; ErrNotFound if it holds none.
	// Confirming a confirmed claim leaves confirmed_at unchanged.
	ConfirmClaim(ctx context.Context, registrationID string, at time.Time) error

	// DeleteClaim releases the registration's portfolio whatever its status; ErrNotFound if it holds none
	DeleteClaim(ctx context.Context, registrationID string) error

	// ReleaseAllottedClaim releases the portfolio only while it is still allotted.
	// It returns ErrClaimConfirmed if the claim was confirmed and ErrNotFound if there is none.
	ReleaseAllottedClaim(ctx context.Context, registrationID string) error
}

// Database defines the interface for all database operations.
// Both postgres.DB and sqlite.DB implement this interface.
type Database interface {
	RegistrationStore
	ClaimStore
	Close() error
}
