package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/munconf/portfolio-allotment/pkg/db"
)

// GetClaims retrieves all portfolio claims
func (d *DB) GetClaims(ctx context.Context) ([]db.PortfolioClaim, error) {
	rows, err := d.conn.QueryContext(ctx, `
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
		var allottedAt int64
		var confirmedAt sql.NullInt64
		if err := rows.Scan(&c.Committee, &c.Subgroup, &c.Portfolio, &c.RegistrationID, &c.Status,
			&c.Tier, &c.Score, &c.PreferenceRank, &allottedAt, &confirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		c.AllottedAt = fromUnix(allottedAt)
		if confirmedAt.Valid {
			t := fromUnix(confirmedAt.Int64)
			c.ConfirmedAt = &t
		}
		claims = append(claims, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}

	return claims, nil
}

// InsertClaim records a claim; the primary key on the portfolio admits one winner
func (d *DB) InsertClaim(ctx context.Context, claim *db.PortfolioClaim) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var held bool
	err = tx.QueryRowContext(ctx, `
	SELECT EXISTS (SELECT 1 FROM portfolio_claim WHERE registration_id = ?)
	`, claim.RegistrationID).Scan(&held)
	if err != nil {
		return fmt.Errorf("failed to check existing claim: %w", err)
	}
	if held {
		return fmt.Errorf("%w: %s", db.ErrAlreadyClaimed, claim.RegistrationID)
	}

	var confirmedAt sql.NullInt64
	if claim.ConfirmedAt != nil {
		confirmedAt = sql.NullInt64{Int64: toUnix(*claim.ConfirmedAt), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO portfolio_claim (
		committee, subgroup, portfolio, registration_id, status, tier, score,
		preference_rank, allotted_at, confirmed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (committee, subgroup, portfolio) DO NOTHING
	`, claim.Committee, claim.Subgroup, claim.Portfolio, claim.RegistrationID, claim.Status,
		claim.Tier, claim.Score, claim.PreferenceRank, toUnix(claim.AllottedAt), confirmedAt)
	if err != nil {
		if isUniqueViolation(err, "portfolio_claim.registration_id") {
			return fmt.Errorf("%w: %s", db.ErrAlreadyClaimed, claim.RegistrationID)
		}
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s / %s / %s", db.ErrPortfolioTaken, claim.Committee, claim.Subgroup, claim.Portfolio)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ConfirmClaim marks a registration's claim as confirmed
func (d *DB) ConfirmClaim(ctx context.Context, registrationID string, at time.Time) error {
	res, err := d.conn.ExecContext(ctx, `
	UPDATE portfolio_claim
	SET status = 'confirmed', confirmed_at = COALESCE(confirmed_at, ?)
	WHERE registration_id = ?
	`, toUnix(at), registrationID)
	if err != nil {
		return fmt.Errorf("failed to confirm claim: %w", err)
	}
	return requireAffected(res, registrationID)
}

// DeleteClaim releases a registration's portfolio
func (d *DB) DeleteClaim(ctx context.Context, registrationID string) error {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM portfolio_claim WHERE registration_id = ?`, registrationID)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
	}
	return requireAffected(res, registrationID)
}

// ReleaseAllottedClaim releases a registration's portfolio unless it has been confirmed
func (d *DB) ReleaseAllottedClaim(ctx context.Context, registrationID string) error {
	res, err := d.conn.ExecContext(ctx, `
	DELETE FROM portfolio_claim WHERE registration_id = ? AND status = 'allotted'
	`, registrationID)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var confirmed bool
	err = d.conn.QueryRowContext(ctx, `
	SELECT EXISTS (SELECT 1 FROM portfolio_claim WHERE registration_id = ?)
	`, registrationID).Scan(&confirmed)
	if err != nil {
		return fmt.Errorf("failed to check claim: %w", err)
	}
	if confirmed {
		return fmt.Errorf("claim for %s: %w", registrationID, db.ErrClaimConfirmed)
	}
	return fmt.Errorf("claim for %s: %w", registrationID, db.ErrNotFound)
}

func requireAffected(res sql.Result, registrationID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("claim for %s: %w", registrationID, db.ErrNotFound)
	}
	return nil
}
