package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"voty/internal/metrics"
	"voty/internal/models"
	"voty/internal/ratelimit"
	"voty/internal/repositories"
	"voty/internal/utils"
)

const (
	codeDigits         = 6
	defaultCodeTTL     = 10 * time.Minute
	defaultMaxAttempts = 5
	smsTemplate        = "VOTY verification code: %s"
)

// SMSSender is satisfied by *utils.Client.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) (*utils.SendSMSResponse, error)
}

type VerificationService interface {
	IssueCode(ctx context.Context, phone, countryCode string) error
	VerifyCode(ctx context.Context, phone, countryCode, code string) (bool, error)
	IsVerified(ctx context.Context, phone, countryCode string) (bool, error)
	Consume(ctx context.Context, phone, countryCode string) (*models.PhoneVerification, error)
	Restore(ctx context.Context, v *models.PhoneVerification) error
}

type VerificationOptions struct {
	CodeTTL     time.Duration
	MaxAttempts int
	BcryptCost  int
}

type verificationService struct {
	repo    repositories.PhoneVerificationRepository
	sms     SMSSender
	limiter ratelimit.Limiter
	metrics metrics.MetricsCollector
	log     *zap.Logger
	opts    VerificationOptions
	now     func() time.Time
	genCode func(digits int) (string, error)
}

func NewVerificationService(
	repo repositories.PhoneVerificationRepository,
	sms SMSSender,
	limiter ratelimit.Limiter,
	m metrics.MetricsCollector,
	log *zap.Logger,
	opts VerificationOptions,
) VerificationService {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = defaultCodeTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &verificationService{
		repo:    repo,
		sms:     sms,
		limiter: limiter,
		metrics: m,
		log:     log,
		opts:    opts,
		now:     time.Now,
		genCode: utils.GenerateCode,
	}
}

// normalizeTarget validates and canonicalizes a (phone, country code) pair.
func normalizeTarget(phone, countryCode string) (string, string, error) {
	phone = utils.NormalizePhone(phone)
	if phone == "" {
		return "", "", invalid("phoneNumber", "phone number is required")
	}
	if !utils.IsDigits(phone) || len(phone) < 5 || len(phone) > 15 {
		return "", "", invalid("phoneNumber", "phone number must contain 5 to 15 digits")
	}
	if strings.TrimSpace(countryCode) == "" {
		return "", "", invalid("countryCode", "country code is required")
	}
	cc := utils.NormalizeCountryCode(countryCode)
	if cc == "" {
		return "", "", invalid("countryCode", "country code must look like +234")
	}
	return phone, cc, nil
}

// IssueCode sends a fresh code; any previous code for the phone stops working.
// A failed send leaves the existing record untouched.
func (s *verificationService) IssueCode(ctx context.Context, phone, countryCode string) error {
	phone, cc, err := normalizeTarget(phone, countryCode)
	if err != nil {
		return err
	}
	recipient := utils.Recipient(cc, phone)
	log := s.log.With(zap.String("phone", utils.MaskPhone(recipient)))

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, recipient); err != nil {
			if errors.Is(err, ratelimit.ErrLimited) {
				s.metrics.RecordCodeThrottled()
				log.Info("code request throttled", zap.Error(err))
				return fmt.Errorf("%w: %w", ErrThrottled, err)
			}
			return transportErr("rate limiter", err)
		}
	}

	code, err := s.genCode(codeDigits)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	// The stored record only changes once the gateway accepted the message.
	resp, err := s.sms.SendSMS(ctx, recipient, fmt.Sprintf(smsTemplate, code))
	if err != nil {
		s.metrics.RecordDeliveryFailure()
		log.Warn("sms delivery failed", zap.Error(err))
		return transportErr("sms gateway", err)
	}

	expiresAt := s.now().Add(s.opts.CodeTTL)
	if _, err := s.repo.Upsert(ctx, phone, cc, string(hash), expiresAt); err != nil {
		log.Error("store code after delivery", zap.Error(err))
		return transportErr("store code", err)
	}

	s.metrics.RecordCodeIssued()
	messageID := ""
	if resp != nil {
		messageID = resp.Data.MessageID
	}
	log.Info("verification code sent", zap.String("message_id", messageID), zap.Time("expires_at", expiresAt))
	return nil
}

// VerifyCode checks code against the single record for the phone. Expiry is
// checked before attempts; a correct code on a verified record is accepted
// again without counting an attempt.
func (s *verificationService) VerifyCode(ctx context.Context, phone, countryCode, code string) (bool, error) {
	phone, cc, err := normalizeTarget(phone, countryCode)
	if err != nil {
		return false, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return false, invalid("code", "verification code is required")
	}
	if len(code) != codeDigits || !utils.IsDigits(code) {
		return false, invalid("code", fmt.Sprintf("verification code must be %d digits", codeDigits))
	}

	now := s.now()
	rec, err := s.repo.Check(ctx, phone, cc, func(v *models.PhoneVerification) (bool, error) {
		if v.IsExpired(now) {
			return false, ErrCodeExpiredOrInvalid
		}
		matches := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)) == nil
		if v.IsVerified && matches {
			return false, nil
		}
		if v.Attempts >= s.opts.MaxAttempts {
			return false, ErrAttemptsExceeded
		}
		v.Attempts++
		if matches {
			v.IsVerified = true
			return true, nil
		}
		if v.Attempts >= s.opts.MaxAttempts {
			return true, ErrAttemptsExceeded
		}
		return true, ErrCodeExpiredOrInvalid
	})

	log := s.log.With(zap.String("phone", utils.MaskPhone(utils.Recipient(cc, phone))))
	switch {
	case err == nil && rec == nil:
		s.metrics.RecordVerification(metrics.OutcomeInvalid)
		return false, ErrCodeExpiredOrInvalid
	case err == nil:
		s.metrics.RecordVerification(metrics.OutcomeVerified)
		log.Info("phone verified", zap.Int("attempts", rec.Attempts))
		return true, nil
	case errors.Is(err, ErrAttemptsExceeded):
		s.metrics.RecordVerification(metrics.OutcomeAttemptsExceeded)
		log.Info("verification attempts exhausted")
		return false, err
	case errors.Is(err, ErrCodeExpiredOrInvalid):
		s.metrics.RecordVerification(metrics.OutcomeInvalid)
		return false, err
	default:
		s.metrics.RecordVerification(metrics.OutcomeError)
		return false, transportErr("verify code", err)
	}
}

func (s *verificationService) IsVerified(ctx context.Context, phone, countryCode string) (bool, error) {
	phone, cc, err := normalizeTarget(phone, countryCode)
	if err != nil {
		return false, err
	}
	ok, err := s.repo.IsVerified(ctx, phone, cc)
	if err != nil {
		return false, transportErr("read verification", err)
	}
	return ok, nil
}

// Consume takes the verified record for the phone so that it can back only
// one account. ErrPhoneNotVerified means there was nothing verified to take.
func (s *verificationService) Consume(ctx context.Context, phone, countryCode string) (*models.PhoneVerification, error) {
	phone, cc, err := normalizeTarget(phone, countryCode)
	if err != nil {
		return nil, err
	}
	v, err := s.repo.Consume(ctx, phone, cc)
	if err != nil {
		return nil, transportErr("consume verification", err)
	}
	if v == nil {
		return nil, ErrPhoneNotVerified
	}
	return v, nil
}

func (s *verificationService) Restore(ctx context.Context, v *models.PhoneVerification) error {
	if err := s.repo.Restore(ctx, v); err != nil {
		return transportErr("restore verification", err)
	}
	return nil
}
