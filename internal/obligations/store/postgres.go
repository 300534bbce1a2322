package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/sentinel"
)

// PostgresStore keeps one JSONB payload per client in client_fiscal_records.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetClientRecord(ctx context.Context, clientID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM client_fiscal_records WHERE client_id = $1`,
		clientID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client record: %w", classify(err))
	}
	return payload, nil
}

func (s *PostgresStore) UpdateClientRecord(ctx context.Context, clientID string, payload []byte) error {
	query := `
		INSERT INTO client_fiscal_records (client_id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (client_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, clientID, string(payload)); err != nil {
		return fmt.Errorf("update client record: %w", classify(err))
	}
	return nil
}

// classify marks data and integrity violations as rejections; retrying the
// same payload would fail the same way.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23":
			return fmt.Errorf("%w: %s", sentinel.ErrRejected, pqErr.Message)
		}
	}
	return err
}

// PostgresProfiles reads client profiles owned by client management.
type PostgresProfiles struct {
	db *sql.DB
}

func NewPostgresProfiles(db *sql.DB) *PostgresProfiles {
	return &PostgresProfiles{db: db}
}

func (p *PostgresProfiles) Profile(ctx context.Context, clientID string) (models.ClientProfile, error) {
	var (
		profile                   models.ClientProfile
		personType, regime, props string
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT client_id, person_type, tax_regime, property_status FROM client_profiles WHERE client_id = $1`,
		clientID,
	).Scan(&profile.ID, &personType, &regime, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ClientProfile{}, fmt.Errorf("profile %s: %w", clientID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.ClientProfile{}, fmt.Errorf("get client profile: %w", err)
	}
	profile.PersonType = models.PersonType(personType)
	profile.TaxRegime = models.TaxRegime(regime)
	profile.PropertyStatus = models.PropertyStatus(props)
	return profile, nil
}

// SaveProfile upserts a profile. Client management owns this table; the
// method exists for seeding and tests.
func (p *PostgresProfiles) SaveProfile(ctx context.Context, profile models.ClientProfile) error {
	query := `
		INSERT INTO client_profiles (client_id, person_type, tax_regime, property_status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (client_id) DO UPDATE SET
			person_type = EXCLUDED.person_type,
			tax_regime = EXCLUDED.tax_regime,
			property_status = EXCLUDED.property_status
	`
	_, err := p.db.ExecContext(ctx, query,
		profile.ID,
		string(profile.PersonType),
		string(profile.TaxRegime),
		string(profile.PropertyStatus),
	)
	if err != nil {
		return fmt.Errorf("save client profile: %w", err)
	}
	return nil
}
