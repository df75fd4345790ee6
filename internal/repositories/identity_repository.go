package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voty/internal/models"
)

type IdentityRepository interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	ConfirmEmail(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	MarkForCleanup(ctx context.Context, id string) error
	ListPendingCleanup(ctx context.Context, limit int) ([]string, error)
}

type identityRepository struct {
	DB *sql.DB
}

func NewIdentityRepository(db *sql.DB) IdentityRepository {
	return &identityRepository{DB: db}
}

func (r *identityRepository) Create(ctx context.Context, identity *models.Identity) error {
	const q = `
		INSERT INTO identities (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	if err := r.DB.QueryRowContext(ctx, q, identity.ID, identity.Email, identity.PasswordHash).Scan(&identity.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("identity create: %w", err)
	}
	return nil
}

const identityColumns = `id, email, password_hash, email_confirmed_at, pending_cleanup, created_at`

func (r *identityRepository) get(ctx context.Context, where string, arg any) (*models.Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM identities WHERE ` + where
	var (
		i         models.Identity
		confirmed sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, arg).Scan(&i.ID, &i.Email, &i.PasswordHash, &confirmed, &i.PendingCleanup, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("identity get: %w", err)
	}
	if confirmed.Valid {
		i.EmailConfirmedAt = &confirmed.Time
	}
	return &i, nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.get(ctx, "email = $1 AND pending_cleanup = FALSE", email)
}

func (r *identityRepository) ConfirmEmail(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE identities SET email_confirmed_at = COALESCE(email_confirmed_at, $2) WHERE id = $1`
	if _, err := r.DB.ExecContext(ctx, q, id, at); err != nil {
		return fmt.Errorf("identity confirm email: %w", err)
	}
	return nil
}

func (r *identityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `UPDATE identities SET password_hash = $2 WHERE id = $1`
	if _, err := r.DB.ExecContext(ctx, q, id, passwordHash); err != nil {
		return fmt.Errorf("identity update password: %w", err)
	}
	return nil
}

func (r *identityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("identity delete: %w", err)
	}
	return nil
}

func (r *identityRepository) MarkForCleanup(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `UPDATE identities SET pending_cleanup = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("identity mark for cleanup: %w", err)
	}
	return nil
}

func (r *identityRepository) ListPendingCleanup(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id FROM identities
		WHERE pending_cleanup = TRUE
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("identity list pending cleanup: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("identity scan pending cleanup: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
