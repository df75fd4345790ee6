package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"voty/internal/metrics"
	"voty/internal/models"
	"voty/internal/repositories"
	"voty/internal/utils"
)

const (
	minPasswordLength     = 8
	dateOfBirthLayout     = "2006-01-02"
	defaultProfileRetries = 3
	defaultRetryBackoff   = 200 * time.Millisecond
	compensationTimeout   = 10 * time.Second
)

// Compensation kinds reported to metrics.
const (
	CompensationDeleted = "deleted"
	CompensationMarked  = "marked"
	CompensationFailed  = "failed"
)

type RegistrationInput struct {
	FullName        string
	Email           string
	PhoneNumber     string
	CountryCode     string
	DateOfBirth     string
	Password        string
	ConfirmPassword string
	AcceptTerms     bool
	RedirectURL     string
}

type RegistrationService interface {
	Register(ctx context.Context, in RegistrationInput) (*models.Profile, error)
}

type RegistrationOptions struct {
	ProfileRetries int
	RetryBackoff   time.Duration
}

type registrationService struct {
	identities   IdentityService
	profiles     repositories.ProfileRepository
	verification VerificationService
	metrics      metrics.MetricsCollector
	log          *zap.Logger
	opts         RegistrationOptions
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewRegistrationService(
	identities IdentityService,
	profiles repositories.ProfileRepository,
	verification VerificationService,
	m metrics.MetricsCollector,
	log *zap.Logger,
	opts RegistrationOptions,
) RegistrationService {
	if opts.ProfileRetries <= 0 {
		opts.ProfileRetries = defaultProfileRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &registrationService{
		identities:   identities,
		profiles:     profiles,
		verification: verification,
		metrics:      m,
		log:          log,
		opts:         opts,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

var validate = validator.New()

// ValidateRegistrationInput normalizes in and reports the first invalid field.
// It returns the parsed date of birth.
func ValidateRegistrationInput(in *RegistrationInput, now time.Time) (time.Time, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.FullName == "" {
		return time.Time{}, invalid("fullName", "full name is required")
	}
	if in.Email == "" {
		return time.Time{}, invalid("email", "email is required")
	}
	if err := validate.Var(in.Email, "email"); err != nil {
		return time.Time{}, invalid("email", "email is not valid")
	}
	phone, cc, err := normalizeTarget(in.PhoneNumber, in.CountryCode)
	if err != nil {
		return time.Time{}, err
	}
	in.PhoneNumber, in.CountryCode = phone, cc

	if strings.TrimSpace(in.DateOfBirth) == "" {
		return time.Time{}, invalid("dateOfBirth", "date of birth is required")
	}
	dob, err := time.Parse(dateOfBirthLayout, strings.TrimSpace(in.DateOfBirth))
	if err != nil {
		return time.Time{}, invalid("dateOfBirth", "date of birth must be YYYY-MM-DD")
	}
	if dob.After(now) {
		return time.Time{}, invalid("dateOfBirth", "date of birth cannot be in the future")
	}

	if in.Password == "" {
		return time.Time{}, invalid("password", "password is required")
	}
	if len(in.Password) < minPasswordLength {
		return time.Time{}, invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if in.Password != in.ConfirmPassword {
		return time.Time{}, invalid("confirmPassword", "passwords do not match")
	}
	if !in.AcceptTerms {
		return time.Time{}, invalid("acceptTerms", "you must accept the terms and conditions")
	}
	return dob, nil
}

// Register takes the verified phone record, creates the identity, then the
// profile under the same id. A profile that cannot be written after retries
// undoes the identity, so an account either exists in both places or in
// neither. On failure the phone record is put back.
func (s *registrationService) Register(ctx context.Context, in RegistrationInput) (*models.Profile, error) {
	dob, err := ValidateRegistrationInput(&in, s.now())
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("phone", utils.MaskPhone(utils.Recipient(in.CountryCode, in.PhoneNumber))))

	claim, err := s.verification.Consume(ctx, in.PhoneNumber, in.CountryCode)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		s.restoreVerification(ctx, claim, log)
		s.metrics.RecordRegistration(false)
		log.Warn("identity creation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrIdentityCreationFailed, err)
	}
	log = log.With(zap.String("identity_id", identity.ID))

	profile := &models.Profile{
		ID:          identity.ID,
		FullName:    in.FullName,
		Email:       in.Email,
		PhoneNumber: in.CountryCode + in.PhoneNumber,
		DateOfBirth: &dob,
	}
	if err := s.createProfile(ctx, profile, log); err != nil {
		s.compensate(ctx, identity.ID, log)
		s.restoreVerification(ctx, claim, log)
		s.metrics.RecordRegistration(false)
		return nil, fmt.Errorf("%w: %w", ErrProfileCreationFailed, err)
	}

	if err := s.identities.RequestEmailConfirmation(ctx, identity, in.FullName, in.RedirectURL); err != nil {
		log.Warn("confirmation email not sent", zap.Error(err))
	}

	s.metrics.RecordRegistration(true)
	log.Info("account registered")
	return profile, nil
}

func (s *registrationService) createProfile(ctx context.Context, p *models.Profile, log *zap.Logger) error {
	backoff := s.opts.RetryBackoff
	var err error
	for attempt := 1; attempt <= s.opts.ProfileRetries; attempt++ {
		if err = s.profiles.Create(ctx, p); err == nil {
			return nil
		}
		if errors.Is(err, repositories.ErrDuplicate) || attempt == s.opts.ProfileRetries {
			break
		}
		log.Warn("profile write failed, retrying", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		s.metrics.RecordProfileRetry()
		if serr := s.sleep(ctx, backoff); serr != nil {
			return fmt.Errorf("%w (retry aborted: %v)", err, serr)
		}
		backoff *= 2
	}
	return err
}

// compensate runs detached from the request so a client disconnect cannot
// leave an identity without a profile.
func (s *registrationService) compensate(ctx context.Context, identityID string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := s.identities.Delete(ctx, identityID)
	if err == nil {
		s.metrics.RecordCompensation(CompensationDeleted)
		log.Info("identity rolled back")
		return
	}
	log.Error("identity rollback failed", zap.Error(err))

	if err := s.identities.MarkForCleanup(ctx, identityID); err != nil {
		s.metrics.RecordCompensation(CompensationFailed)
		log.Error("identity left without profile", zap.Error(err))
		return
	}
	s.metrics.RecordCompensation(CompensationMarked)
	log.Warn("identity marked for cleanup")
}

func (s *registrationService) restoreVerification(ctx context.Context, v *models.PhoneVerification, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.verification.Restore(ctx, v); err != nil {
		log.Error("verification record not restored", zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
