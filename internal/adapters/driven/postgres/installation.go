package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
)

// Ensure InstallationStore implements the interface.
var _ driven.InstallationStore = (*InstallationStore)(nil)

// tokenSecrets is the encrypted part of an installation row.
type tokenSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

const installationColumns = `
	i.id, i.token_blob, i.expires_in, i.issued_at, i.token_type, i.scopes,
	i.user_type, i.location_id, i.user_id, i.company_id, i.authenticated,
	i.superseded_by, i.superseded_at, i.created_at, i.updated_at`

// InstallationStore implements driven.InstallationStore using PostgreSQL.
// Access and refresh tokens are stored sealed in token_blob.
type InstallationStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewInstallationStore creates a new PostgreSQL-backed installation store.
func NewInstallationStore(db *DB, encryptor *SecretEncryptor) *InstallationStore {
	return &InstallationStore{
		db:        db,
		encryptor: encryptor,
	}
}

// Create inserts a new installation and points its location at it. The
// displaced installation is superseded in the same transaction.
func (s *InstallationStore) Create(ctx context.Context, inst *domain.Installation) (*domain.Installation, string, error) {
	if inst == nil || inst.ID == "" {
		return nil, "", domain.ErrInvalidInput
	}

	blob, err := s.encryptor.Seal(inst.ID, tokenSecrets{
		AccessToken:  inst.AccessToken,
		RefreshToken: inst.RefreshToken,
	})
	if err != nil {
		return nil, "", fmt.Errorf("encrypt tokens: %w", err)
	}

	var superseded string
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ghl_installations (
				id, token_blob, expires_in, issued_at, token_type, scopes,
				user_type, location_id, user_id, company_id, authenticated,
				refreshable, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			inst.ID,
			blob,
			inst.ExpiresIn,
			inst.IssuedAt,
			inst.TokenType,
			pq.Array(splitScope(inst.Scope)),
			string(inst.UserType),
			inst.LocationID,
			inst.UserID,
			inst.CompanyID,
			inst.Authenticated,
			inst.CanRefresh(),
			inst.CreatedAt,
			inst.UpdatedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return fmt.Errorf("%w: installation %s exists", domain.ErrInvalidInput, inst.ID)
			}
			return fmt.Errorf("insert installation: %w", err)
		}

		if inst.LocationID == "" {
			return nil
		}
		at := inst.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		superseded, err = claimLocation(ctx, tx, inst.LocationID, inst.ID, at)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	return inst.Clone(), superseded, nil
}

// Get retrieves an installation by ID with decrypted tokens.
func (s *InstallationStore) Get(ctx context.Context, id string) (*domain.Installation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+installationColumns+` FROM ghl_installations i WHERE i.id = $1`, id)
	return s.scan(row)
}

// GetByLocation resolves the location index, then the installation.
func (s *InstallationStore) GetByLocation(ctx context.Context, locationID string) (*domain.Installation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+installationColumns+`
		FROM ghl_location_index l
		JOIN ghl_installations i ON i.id = l.installation_id
		WHERE l.location_id = $1
	`, locationID)
	return s.scan(row)
}

// List returns all installations in insertion order.
func (s *InstallationStore) List(ctx context.Context) ([]*domain.Installation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+installationColumns+` FROM ghl_installations i ORDER BY i.seq`)
	if err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}
	defer rows.Close()

	var result []*domain.Installation
	for rows.Next() {
		inst, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installations: %w", err)
	}
	return result, nil
}

// UpdateTokens rewrites the sealed tokens and issuance metadata in one
// row-locked transaction.
func (s *InstallationStore) UpdateTokens(ctx context.Context, id string, update domain.TokenUpdate) (*domain.Installation, error) {
	if update.AccessToken == "" {
		return nil, domain.ErrInvalidInput
	}

	var updated *domain.Installation
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		inst, err := s.scan(tx.QueryRowContext(ctx,
			`SELECT `+installationColumns+` FROM ghl_installations i WHERE i.id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		inst.ApplyTokens(update)

		blob, err := s.encryptor.Seal(inst.ID, tokenSecrets{
			AccessToken:  inst.AccessToken,
			RefreshToken: inst.RefreshToken,
		})
		if err != nil {
			return fmt.Errorf("encrypt tokens: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE ghl_installations
			SET token_blob = $2, expires_in = $3, issued_at = $4, token_type = $5,
				scopes = $6, refreshable = $7, updated_at = $8
			WHERE id = $1
		`,
			inst.ID,
			blob,
			inst.ExpiresIn,
			inst.IssuedAt,
			inst.TokenType,
			pq.Array(splitScope(inst.Scope)),
			inst.CanRefresh(),
			inst.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update tokens: %w", err)
		}

		updated = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetLocation fills in a location learned after creation and indexes it.
func (s *InstallationStore) SetLocation(ctx context.Context, id, locationID, companyID string) (string, error) {
	if locationID == "" {
		return "", domain.ErrInvalidInput
	}

	var superseded string
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var previous string
		err := tx.QueryRowContext(ctx,
			`SELECT location_id FROM ghl_installations WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get location: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE ghl_installations
			SET location_id = $2, company_id = COALESCE(NULLIF($3, ''), company_id), updated_at = NOW()
			WHERE id = $1
		`, id, locationID, companyID); err != nil {
			return fmt.Errorf("set location: %w", err)
		}

		if previous != "" && previous != locationID {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM ghl_location_index WHERE location_id = $1 AND installation_id = $2`,
				previous, id); err != nil {
				return fmt.Errorf("unindex location: %w", err)
			}
		}

		superseded, err = claimLocation(ctx, tx, locationID, id, time.Now())
		return err
	})
	if err != nil {
		return "", err
	}
	return superseded, nil
}

// Ping checks if the database is reachable
func (s *InstallationStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// claimLocation points a location at an installation and supersedes the
// installation it displaced. A transaction-scoped advisory lock serializes
// claims on one location, including the first insert of its index row.
func claimLocation(ctx context.Context, tx *sql.Tx, locationID, installationID string, at time.Time) (string, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey("location:"+locationID)); err != nil {
		return "", fmt.Errorf("lock location: %w", err)
	}

	var previous string
	err := tx.QueryRowContext(ctx,
		`SELECT installation_id FROM ghl_location_index WHERE location_id = $1 FOR UPDATE`,
		locationID).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read location index: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ghl_location_index (location_id, installation_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (location_id) DO UPDATE SET
			installation_id = EXCLUDED.installation_id,
			updated_at = EXCLUDED.updated_at
	`, locationID, installationID)
	if err != nil {
		return "", fmt.Errorf("index location: %w", err)
	}

	if previous == "" || previous == installationID {
		return "", nil
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE ghl_installations SET superseded_by = $2, superseded_at = $3
		WHERE id = $1 AND superseded_by IS NULL
	`, previous, installationID, at)
	if err != nil {
		return "", fmt.Errorf("mark superseded: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return "", nil
	}
	return previous, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *InstallationStore) scan(row rowScanner) (*domain.Installation, error) {
	var (
		inst         domain.Installation
		blob         []byte
		scopes       []string
		userType     string
		supersededBy sql.NullString
		supersededAt sql.NullTime
	)

	err := row.Scan(
		&inst.ID,
		&blob,
		&inst.ExpiresIn,
		&inst.IssuedAt,
		&inst.TokenType,
		pq.Array(&scopes),
		&userType,
		&inst.LocationID,
		&inst.UserID,
		&inst.CompanyID,
		&inst.Authenticated,
		&supersededBy,
		&supersededAt,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan installation: %w", err)
	}

	var secrets tokenSecrets
	if err := s.encryptor.Open(inst.ID, blob, &secrets); err != nil {
		return nil, fmt.Errorf("decrypt tokens for %s: %w", inst.ID, err)
	}
	inst.AccessToken = secrets.AccessToken
	inst.RefreshToken = secrets.RefreshToken

	inst.Scope = strings.Join(scopes, " ")
	inst.UserType = domain.UserType(userType)
	inst.SupersededBy = supersededBy.String
	if supersededAt.Valid {
		at := supersededAt.Time
		inst.SupersededAt = &at
	}
	return &inst, nil
}

// splitScope turns GHL's space-separated scope string into an array.
func splitScope(scope string) []string {
	fields := strings.Fields(scope)
	if fields == nil {
		return []string{}
	}
	return fields
}
