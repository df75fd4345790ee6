package services

import (
	"context"
	"strings"
	"time"

	"voty/internal/models"
	"voty/internal/repositories"
)

const sessionRole = "user"

type LoginResult struct {
	AccessToken string              `json:"accessToken"`
	ExpiresAt   time.Time           `json:"expiresAt"`
	User        *models.SessionUser `json:"user"`
}

type UserService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	GetSessionUser(ctx context.Context, identityID string) (*models.SessionUser, error)
}

type userService struct {
	identities IdentityService
	profiles   repositories.ProfileRepository
	auth       AuthService
}

func NewUserService(identities IdentityService, profiles repositories.ProfileRepository, auth AuthService) UserService {
	return &userService{
		identities: identities,
		profiles:   profiles,
		auth:       auth,
	}
}

func (s *userService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, invalid("email", "email and password are required")
	}
	identity, err := s.identities.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user, err := s.sessionUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	token, exp, err := s.auth.IssueAccessToken(identity.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: token, ExpiresAt: exp, User: user}, nil
}

func (s *userService) GetSessionUser(ctx context.Context, identityID string) (*models.SessionUser, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity == nil || identity.PendingCleanup {
		return nil, ErrInvalidToken
	}
	return s.sessionUser(ctx, identity)
}

// sessionUser joins the identity with its profile. An identity without a
// profile is a half-registered account and cannot sign in.
func (s *userService) sessionUser(ctx context.Context, identity *models.Identity) (*models.SessionUser, error) {
	profile, err := s.profiles.GetByID(ctx, identity.ID)
	if err != nil {
		return nil, transportErr("read profile", err)
	}
	if profile == nil {
		return nil, ErrInvalidCredentials
	}
	return &models.SessionUser{
		ID:            identity.ID,
		Name:          profile.FullName,
		Email:         identity.Email,
		Role:          sessionRole,
		EmailVerified: identity.EmailConfirmedAt != nil,
	}, nil
}
