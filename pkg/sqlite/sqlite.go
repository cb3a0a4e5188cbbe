package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/munconf/portfolio-allotment/pkg/db"
)

// DB provides database operations using an embedded SQLite file
type DB struct {
	conn *sql.DB
}

var _ db.Database = (*DB)(nil)

// NewDB opens (or creates) the database at path and initialises the schema.
// Use ":memory:" for a throwaway database.
func NewDB(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers and keeps :memory: databases shared
	conn.SetMaxOpenConns(1)

	d := &DB{conn: conn}
	if err := d.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return d, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) initSchema(ctx context.Context) error {
	schema := `
	PRAGMA foreign_keys = ON;
	PRAGMA journal_mode = WAL;

	CREATE TABLE IF NOT EXISTS registration (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		institution TEXT NOT NULL DEFAULT '',
		class TEXT NOT NULL DEFAULT '',
		experience_band TEXT NOT NULL,
		best_delegate_awards INTEGER NOT NULL DEFAULT 0,
		special_mention_awards INTEGER NOT NULL DEFAULT 0,
		verbal_mention_awards INTEGER NOT NULL DEFAULT 0,
		participations INTEGER NOT NULL DEFAULT 0,
		preferences TEXT NOT NULL DEFAULT '[]',
		payment_code TEXT NOT NULL UNIQUE,
		registered_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_registration_registered_at ON registration(registered_at);

	CREATE TABLE IF NOT EXISTS portfolio_claim (
		committee TEXT NOT NULL,
		subgroup TEXT NOT NULL DEFAULT '',
		portfolio TEXT NOT NULL,
		registration_id TEXT NOT NULL UNIQUE REFERENCES registration(id) ON DELETE CASCADE,
		status TEXT NOT NULL CHECK (status IN ('allotted', 'confirmed')),
		tier INTEGER NOT NULL,
		score INTEGER NOT NULL,
		preference_rank INTEGER NOT NULL,
		allotted_at INTEGER NOT NULL,
		confirmed_at INTEGER,
		PRIMARY KEY (committee, subgroup, portfolio)
	);

	CREATE INDEX IF NOT EXISTS idx_portfolio_claim_status ON portfolio_claim(status);
	`

	_, err := d.conn.ExecContext(ctx, schema)
	return err
}

// Times are stored as UTC unix nanoseconds

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

// InsertRegistration inserts a new registration record
func (d *DB) InsertRegistration(ctx context.Context, reg *db.Registration) error {
	prefs, err := db.EncodePreferences(reg.Preferences)
	if err != nil {
		return err
	}

	_, err = d.conn.ExecContext(ctx, `
	INSERT INTO registration (
		id, name, email, phone, institution, class, experience_band,
		best_delegate_awards, special_mention_awards, verbal_mention_awards, participations,
		preferences, payment_code, registered_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, reg.ID, reg.Name, reg.Email, reg.Phone, reg.Institution, reg.Class, reg.ExperienceBand,
		reg.BestDelegateAwards, reg.SpecialMentionAwards, reg.VerbalMentionAwards, reg.Participations,
		string(prefs), reg.PaymentCode, toUnix(reg.RegisteredAt))
	if err != nil {
		if isUniqueViolation(err, "registration.email") {
			return fmt.Errorf("%w: %s", db.ErrDuplicateEmail, reg.Email)
		}
		return fmt.Errorf("failed to insert registration: %w", err)
	}
	return nil
}

const selectRegistrations = `
	SELECT r.id, r.name, r.email, r.phone, r.institution, r.class, r.experience_band,
		r.best_delegate_awards, r.special_mention_awards, r.verbal_mention_awards, r.participations,
		r.preferences, r.payment_code, r.registered_at,
		c.committee, c.subgroup, c.portfolio, c.status, c.tier, c.score, c.preference_rank,
		c.allotted_at, c.confirmed_at
	FROM registration r
	LEFT JOIN portfolio_claim c ON c.registration_id = r.id
`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetRegistrations retrieves all registrations in arrival order
func (d *DB) GetRegistrations(ctx context.Context) ([]db.Registration, error) {
	rows, err := d.conn.QueryContext(ctx, selectRegistrations+` ORDER BY r.registered_at, r.id`)
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
	reg, err := scanRegistration(d.conn.QueryRowContext(ctx, selectRegistrations+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registration %s: %w", id, db.ErrNotFound)
	}
	return reg, err
}

// GetRegistrationByEmail retrieves a registration by email address
func (d *DB) GetRegistrationByEmail(ctx context.Context, email string) (*db.Registration, error) {
	reg, err := scanRegistration(d.conn.QueryRowContext(ctx, selectRegistrations+` WHERE r.email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registration for %s: %w", email, db.ErrNotFound)
	}
	return reg, err
}

func scanRegistration(row rowScanner) (*db.Registration, error) {
	var reg db.Registration
	var prefs string
	var registeredAt int64
	var committee, subgroup, portfolio, status sql.NullString
	var tier, score, rank, allottedAt, confirmedAt sql.NullInt64

	err := row.Scan(
		&reg.ID, &reg.Name, &reg.Email, &reg.Phone, &reg.Institution, &reg.Class, &reg.ExperienceBand,
		&reg.BestDelegateAwards, &reg.SpecialMentionAwards, &reg.VerbalMentionAwards, &reg.Participations,
		&prefs, &reg.PaymentCode, &registeredAt,
		&committee, &subgroup, &portfolio, &status, &tier, &score, &rank, &allottedAt, &confirmedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan registration: %w", err)
	}

	reg.RegisteredAt = fromUnix(registeredAt)
	if reg.Preferences, err = db.DecodePreferences([]byte(prefs)); err != nil {
		return nil, err
	}

	if committee.Valid {
		reg.Claim = &db.PortfolioClaim{
			Committee:      committee.String,
			Subgroup:       subgroup.String,
			Portfolio:      portfolio.String,
			RegistrationID: reg.ID,
			Status:         status.String,
			Tier:           int(tier.Int64),
			Score:          int(score.Int64),
			PreferenceRank: int(rank.Int64),
			AllottedAt:     fromUnix(allottedAt.Int64),
		}
		if confirmedAt.Valid {
			t := fromUnix(confirmedAt.Int64)
			reg.Claim.ConfirmedAt = &t
		}
	}

	return &reg, nil
}
