package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voty/internal/models"
	"voty/internal/repositories"
)

// IdentityService owns credentials. It knows nothing about profiles.
type IdentityService interface {
	SignUp(ctx context.Context, email, password string) (*models.Identity, error)
	RequestEmailConfirmation(ctx context.Context, identity *models.Identity, fullName, redirectURL string) error
	ConfirmEmail(ctx context.Context, token string) (redirectURL string, err error)
	Authenticate(ctx context.Context, email, password string) (*models.Identity, error)
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	Delete(ctx context.Context, id string) error
	MarkForCleanup(ctx context.Context, id string) error
}

type identityService struct {
	repo          repositories.IdentityRepository
	auth          AuthService
	emails        EmailService
	publicBaseURL string
	log           *zap.Logger
	now           func() time.Time
}

func NewIdentityService(repo repositories.IdentityRepository, auth AuthService, emails EmailService, publicBaseURL string, log *zap.Logger) IdentityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &identityService{
		repo:          repo,
		auth:          auth,
		emails:        emails,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
		now:           time.Now,
	}
}

func (s *identityService) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, invalid("email", "email is required")
	}
	if password == "" {
		return nil, invalid("password", "password is required")
	}

	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	identity := &models.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, identity); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, transportErr("create identity", err)
	}
	return identity, nil
}

// RequestEmailConfirmation mails a link to GET /auth/confirm-email; the token
// carries the identity id and where to send the browser afterwards.
func (s *identityService) RequestEmailConfirmation(ctx context.Context, identity *models.Identity, fullName, redirectURL string) error {
	if s.emails == nil {
		return nil
	}
	token, err := s.auth.IssueEmailToken(identity.ID, redirectURL)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/confirm-email?token=%s", s.publicBaseURL, url.QueryEscape(token))
	if err := s.emails.SendConfirmationEmail(identity.Email, fullName, link); err != nil {
		return transportErr("smtp", err)
	}
	return nil
}

func (s *identityService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	id, redirect, err := s.auth.ParseEmailToken(token)
	if err != nil {
		return "", err
	}
	identity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", transportErr("read identity", err)
	}
	if identity == nil || identity.PendingCleanup {
		return "", ErrInvalidToken
	}
	if err := s.repo.ConfirmEmail(ctx, id, s.now()); err != nil {
		return "", transportErr("confirm email", err)
	}
	s.log.Info("email confirmed", zap.String("identity_id", id))
	return redirect, nil
}

func (s *identityService) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	identity, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, transportErr("read identity", err)
	}
	if identity == nil || !s.auth.CheckPassword(identity.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return identity, nil
}

func (s *identityService) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	identity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, transportErr("read identity", err)
	}
	return identity, nil
}

func (s *identityService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *identityService) MarkForCleanup(ctx context.Context, id string) error {
	return s.repo.MarkForCleanup(ctx, id)
}
