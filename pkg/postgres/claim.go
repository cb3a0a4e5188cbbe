package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/munconf/portfolio-allotment/pkg/db"
)

// GetClaims retrieves all portfolio claims
func (d *DB) GetClaims(ctx context.Context) ([]db.PortfolioClaim, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT committee, subgroup, portfolio, registration_id, status, tier, score,
			preference_rank, allotted_at, confirmed_at
		FROM portfolio_claim
		ORDER BY allotted_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []db.PortfolioClaim
	for rows.Next() {
		var c db.PortfolioClaim
		if err := rows.Scan(&c.Committee, &c.Subgroup, &c.Portfolio, &c.RegistrationID, &c.Status,
			&c.Tier, &c.Score, &c.PreferenceRank, &c.AllottedAt, &c.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}

	return claims, nil
}

// InsertClaim records a claim. The primary key on (committee, subgroup, portfolio)
// makes concurrent claims on one portfolio resolve to a single winner.
func (d *DB) InsertClaim(ctx context.Context, claim *db.PortfolioClaim) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var held bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM portfolio_claim WHERE registration_id = $1)
	`, claim.RegistrationID).Scan(&held)
	if err != nil {
		return fmt.Errorf("failed to check existing claim: %w", err)
	}
	if held {
		return fmt.Errorf("%w: %s", db.ErrAlreadyClaimed, claim.RegistrationID)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO portfolio_claim (
			committee, subgroup, portfolio, registration_id, status, tier, score,
			preference_rank, allotted_at, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (committee, subgroup, portfolio) DO NOTHING
	`, claim.Committee, claim.Subgroup, claim.Portfolio, claim.RegistrationID, claim.Status,
		claim.Tier, claim.Score, claim.PreferenceRank, claim.AllottedAt.UTC(), claim.ConfirmedAt)
	if err != nil {
		if uniqueConstraint(err) == "portfolio_claim_registration_key" {
			return fmt.Errorf("%w: %s", db.ErrAlreadyClaimed, claim.RegistrationID)
		}
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s / %s / %s", db.ErrPortfolioTaken, claim.Committee, claim.Subgroup, claim.Portfolio)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ConfirmClaim marks a registration's claim as confirmed
func (d *DB) ConfirmClaim(ctx context.Context, registrationID string, at time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE portfolio_claim
		SET status = 'confirmed', confirmed_at = COALESCE(confirmed_at, $2)
		WHERE registration_id = $1
	`, registrationID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to confirm claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim for %s: %w", registrationID, db.ErrNotFound)
	}
	return nil
}

// DeleteClaim releases a registration's portfolio
func (d *DB) DeleteClaim(ctx context.Context, registrationID string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM portfolio_claim WHERE registration_id = $1`, registrationID)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim for %s: %w", registrationID, db.ErrNotFound)
	}
	return nil
}

// ReleaseAllottedClaim releases a registration's portfolio unless it has been confirmed
func (d *DB) ReleaseAllottedClaim(ctx context.Context, registrationID string) error {
	tag, err := d.pool.Exec(ctx, `
	DELETE FROM portfolio_claim WHERE registration_id = $1 AND status = 'allotted'
	`, registrationID)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var confirmed bool
	err = d.pool.QueryRow(ctx, `
	SELECT EXISTS (SELECT 1 FROM portfolio_claim WHERE registration_id = $1)
	`, registrationID).Scan(&confirmed)
	if err != nil {
		return fmt.Errorf("failed to check claim: %w", err)
	}
	if confirmed {
		return fmt.Errorf("claim for %s: %w", registrationID, db.ErrClaimConfirmed)
	}
	return fmt.Errorf("claim for %s: %w", registrationID, db.ErrNotFound)
}
