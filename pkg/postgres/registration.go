package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/munconf/portfolio-allotment/pkg/db"
)

const selectRegistrations = `
	SELECT r.id, r.name, r.email, r.phone, r.institution, r.class, r.experience_band,
		r.best_delegate_awards, r.special_mention_awards, r.verbal_mention_awards, r.participations,
		r.preferences, r.payment_code, r.registered_at,
		c.committee, c.subgroup, c.portfolio, c.status, c.tier, c.score, c.preference_rank,
		c.allotted_at, c.confirmed_at
	FROM registration r
	LEFT JOIN portfolio_claim c ON c.registration_id = r.id
`

// InsertRegistration inserts a new registration record
func (d *DB) InsertRegistration(ctx context.Context, reg *db.Registration) error {
	prefs, err := db.EncodePreferences(reg.Preferences)
	if err != nil {
		return err
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO registration (
			id, name, email, phone, institution, class, experience_band,
			best_delegate_awards, special_mention_awards, verbal_mention_awards, participations,
			preferences, payment_code, registered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, reg.ID, reg.Name, reg.Email, reg.Phone, reg.Institution, reg.Class, reg.ExperienceBand,
		reg.BestDelegateAwards, reg.SpecialMentionAwards, reg.VerbalMentionAwards, reg.Participations,
		prefs, reg.PaymentCode, reg.RegisteredAt.UTC())
	if err != nil {
		if uniqueConstraint(err) == "registration_email_key" {
			return fmt.Errorf("%w: %s", db.ErrDuplicateEmail, reg.Email)
		}
		return fmt.Errorf("failed to insert registration: %w", err)
	}
	return nil
}

// GetRegistrations retrieves all registrations in arrival order
func (d *DB) GetRegistrations(ctx context.Context) ([]db.Registration, error) {
	rows, err := d.pool.Query(ctx, selectRegistrations+` ORDER BY r.registered_at, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	var registrations []db.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, *reg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registrations: %w", err)
	}

	return registrations, nil
}

// GetRegistration retrieves a registration by ID
func (d *DB) GetRegistration(ctx context.Context, id string) (*db.Registration, error) {
	reg, err := scanRegistration(d.pool.QueryRow(ctx, selectRegistrations+` WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("registration %s: %w", id, db.ErrNotFound)
	}
	return reg, err
}

// GetRegistrationByEmail retrieves a registration by email address
func (d *DB) GetRegistrationByEmail(ctx context.Context, email string) (*db.Registration, error) {
	reg, err := scanRegistration(d.pool.QueryRow(ctx, selectRegistrations+` WHERE r.email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("registration for %s: %w", email, db.ErrNotFound)
	}
	return reg, err
}

func scanRegistration(row pgx.Row) (*db.Registration, error) {
	var reg db.Registration
	var prefs []byte
	var committee, subgroup, portfolio, status *string
	var tier, score, rank *int
	var allottedAt, confirmedAt *time.Time

	err := row.Scan(
		&reg.ID, &reg.Name, &reg.Email, &reg.Phone, &reg.Institution, &reg.Class, &reg.ExperienceBand,
		&reg.BestDelegateAwards, &reg.SpecialMentionAwards, &reg.VerbalMentionAwards, &reg.Participations,
		&prefs, &reg.PaymentCode, &reg.RegisteredAt,
		&committee, &subgroup, &portfolio, &status, &tier, &score, &rank, &allottedAt, &confirmedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan registration: %w", err)
	}

	if reg.Preferences, err = db.DecodePreferences(prefs); err != nil {
		return nil, err
	}

	if committee != nil {
		reg.Claim = &db.PortfolioClaim{
			Committee:      *committee,
			Subgroup:       *subgroup,
			Portfolio:      *portfolio,
			RegistrationID: reg.ID,
			Status:         *status,
			Tier:           *tier,
			Score:          *score,
			PreferenceRank: *rank,
			AllottedAt:     *allottedAt,
			ConfirmedAt:    confirmedAt,
		}
	}

	return &reg, nil
}
