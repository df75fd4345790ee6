package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voty/internal/models"
)

// VerificationCheck inspects the locked record and may mutate Attempts/IsVerified.
// changed=true persists the record even when err is non-nil.
type VerificationCheck func(v *models.PhoneVerification) (changed bool, err error)

type PhoneVerificationRepository interface {
	Upsert(ctx context.Context, phone, countryCode, codeHash string, expiresAt time.Time) (*models.PhoneVerification, error)
	Check(ctx context.Context, phone, countryCode string, check VerificationCheck) (*models.PhoneVerification, error)
	IsVerified(ctx context.Context, phone, countryCode string) (bool, error)
	Consume(ctx context.Context, phone, countryCode string) (*models.PhoneVerification, error)
	Restore(ctx context.Context, v *models.PhoneVerification) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type phoneVerificationRepository struct {
	DB *sql.DB
}

func NewPhoneVerificationRepository(db *sql.DB) PhoneVerificationRepository {
	return &phoneVerificationRepository{DB: db}
}

const phoneVerificationColumns = `id, phone_number, country_code, code_hash, expires_at, attempts, is_verified, created_at, updated_at`

func scanPhoneVerification(row interface{ Scan(...any) error }) (*models.PhoneVerification, error) {
	var v models.PhoneVerification
	if err := row.Scan(&v.ID, &v.PhoneNumber, &v.CountryCode, &v.CodeHash, &v.ExpiresAt,
		&v.Attempts, &v.IsVerified, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// Upsert keeps one row per (phone, country). A new code resets attempts and verification.
func (r *phoneVerificationRepository) Upsert(ctx context.Context, phone, countryCode, codeHash string, expiresAt time.Time) (*models.PhoneVerification, error) {
	const q = `
		INSERT INTO phone_verifications (phone_number, country_code, code_hash, expires_at, attempts, is_verified)
		VALUES ($1, $2, $3, $4, 0, FALSE)
		ON CONFLICT (phone_number, country_code) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    expires_at = EXCLUDED.expires_at,
		    attempts = 0,
		    is_verified = FALSE,
		    updated_at = NOW()
		RETURNING ` + phoneVerificationColumns
	v, err := scanPhoneVerification(r.DB.QueryRowContext(ctx, q, phone, countryCode, codeHash, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("phone_verification upsert: %w", err)
	}
	return v, nil
}

// Check locks the row for the duration of check, so concurrent attempts on the
// same phone are serialized. Returns (nil, nil) when there is no row.
func (r *phoneVerificationRepository) Check(ctx context.Context, phone, countryCode string, check VerificationCheck) (*models.PhoneVerification, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("phone_verification begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const sel = `
		SELECT ` + phoneVerificationColumns + `
		FROM phone_verifications
		WHERE phone_number = $1 AND country_code = $2
		FOR UPDATE
	`
	v, err := scanPhoneVerification(tx.QueryRowContext(ctx, sel, phone, countryCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("phone_verification select: %w", err)
	}

	changed, checkErr := check(v)
	if !changed {
		return v, checkErr
	}

	const upd = `
		UPDATE phone_verifications
		SET attempts = $1, is_verified = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, upd, v.Attempts, v.IsVerified, v.ID); err != nil {
		return nil, fmt.Errorf("phone_verification update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("phone_verification commit: %w", err)
	}
	return v, checkErr
}

func (r *phoneVerificationRepository) IsVerified(ctx context.Context, phone, countryCode string) (bool, error) {
	const q = `
		SELECT is_verified
		FROM phone_verifications
		WHERE phone_number = $1 AND country_code = $2
	`
	var ok bool
	if err := r.DB.QueryRowContext(ctx, q, phone, countryCode).Scan(&ok); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("phone_verification is_verified: %w", err)
	}
	return ok, nil
}

// Consume deletes the record only if it is verified and returns what was
// deleted. Of two concurrent callers at most one gets the row; the other
// gets (nil, nil).
func (r *phoneVerificationRepository) Consume(ctx context.Context, phone, countryCode string) (*models.PhoneVerification, error) {
	const q = `
		DELETE FROM phone_verifications
		WHERE phone_number = $1 AND country_code = $2 AND is_verified
		RETURNING ` + phoneVerificationColumns
	v, err := scanPhoneVerification(r.DB.QueryRowContext(ctx, q, phone, countryCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("phone_verification consume: %w", err)
	}
	return v, nil
}

// Restore puts back a consumed record. A code issued for the phone in the
// meantime wins.
func (r *phoneVerificationRepository) Restore(ctx context.Context, v *models.PhoneVerification) error {
	const q = `
		INSERT INTO phone_verifications
			(phone_number, country_code, code_hash, expires_at, attempts, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (phone_number, country_code) DO NOTHING
	`
	if _, err := r.DB.ExecContext(ctx, q, v.PhoneNumber, v.CountryCode, v.CodeHash, v.ExpiresAt,
		v.Attempts, v.IsVerified, v.CreatedAt); err != nil {
		return fmt.Errorf("phone_verification restore: %w", err)
	}
	return nil
}

func (r *phoneVerificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM phone_verifications WHERE expires_at < $1`
	res, err := r.DB.ExecContext(ctx, q, before)
	if err != nil {
		return 0, fmt.Errorf("phone_verification delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("phone_verification rows affected: %w", err)
	}
	return n, nil
}
