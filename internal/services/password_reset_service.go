package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"voty/internal/repositories"
	"voty/internal/utils"
)

const defaultResetTTL = time.Hour

type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type passwordResetService struct {
	identities repositories.IdentityRepository
	repo       repositories.PasswordResetRepository
	emails     EmailService
	auth       AuthService
	resetURL   string
	ttl        time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewPasswordResetService builds reset links as resetURL?token=...
func NewPasswordResetService(identities repositories.IdentityRepository, repo repositories.PasswordResetRepository, emails EmailService, auth AuthService, resetURL string, ttl time.Duration, log *zap.Logger) PasswordResetService {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &passwordResetService{
		identities: identities,
		repo:       repo,
		emails:     emails,
		auth:       auth,
		resetURL:   resetURL,
		ttl:        ttl,
		log:        log,
		now:        time.Now,
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return invalid("email", "email is required")
	}
	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil || identity == nil {
		// don't leak existence
		s.log.Info("password reset for unknown email", zap.Error(err))
		return nil
	}

	token, err := utils.NewRandomToken(32)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(ctx, identity.ID, token, s.now().Add(s.ttl)); err != nil {
		return transportErr("store reset token", err)
	}

	if s.emails != nil {
		link := fmt.Sprintf("%s?token=%s", s.resetURL, url.QueryEscape(token))
		if err := s.emails.SendPasswordResetEmail(identity.Email, link); err != nil {
			s.log.Warn("password reset email not sent", zap.String("identity_id", identity.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("token", "token is required")
	}
	if len(newPassword) < minPasswordLength {
		return invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	pr, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return transportErr("read reset token", err)
	}
	if pr == nil || !s.now().Before(pr.ExpiresAt) {
		return ErrInvalidToken
	}
	if pr.UsedAt != nil {
		return ErrTokenUsed
	}

	ok, err := s.repo.MarkUsed(ctx, pr.ID)
	if err != nil {
		return transportErr("mark reset token", err)
	}
	if !ok {
		return ErrTokenUsed
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePassword(ctx, pr.IdentityID, hash); err != nil {
		return transportErr("update password", err)
	}
	s.log.Info("password reset", zap.String("identity_id", pr.IdentityID))
	return nil
}
