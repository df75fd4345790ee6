package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"voty/internal/models"
)

type ProfileRepository interface {
	Create(ctx context.Context, p *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

type profileRepository struct {
	DB *sql.DB
}

func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{DB: db}
}

func (r *profileRepository) Create(ctx context.Context, p *models.Profile) error {
	const q = `
		INSERT INTO app_users (id, full_name, email, phone_number, date_of_birth)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := r.DB.QueryRowContext(ctx, q, p.ID, p.FullName, p.Email, p.PhoneNumber, p.DateOfBirth).Scan(&p.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("profile create: %w", err)
	}
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	const q = `
		SELECT id, full_name, email, phone_number, date_of_birth, created_at
		FROM app_users
		WHERE id = $1
	`
	var (
		p   models.Profile
		dob sql.NullTime
	)
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.FullName, &p.Email, &p.PhoneNumber, &dob, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile get: %w", err)
	}
	if dob.Valid {
		p.DateOfBirth = &dob.Time
	}
	return &p, nil
}
