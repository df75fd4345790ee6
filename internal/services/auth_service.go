package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"voty/internal/models"
)

const (
	audienceAccess       = "access"
	audienceSignup       = "signup"
	audienceEmailConfirm = "email-confirm"
	tokenIssuer          = "voty"
)

type AuthService interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool

	IssueAccessToken(identityID string) (string, time.Time, error)
	ParseAccessToken(token string) (string, error)

	IssueSignupToken(state *models.SignupState) (string, error)
	ParseSignupToken(token string) (*models.SignupState, error)

	IssueEmailToken(identityID, redirectURL string) (string, error)
	ParseEmailToken(token string) (identityID, redirectURL string, err error)
}

type AuthOptions struct {
	AccessTTL  time.Duration
	SignupTTL  time.Duration
	EmailTTL   time.Duration
	BcryptCost int
}

type authService struct {
	secret []byte
	opts   AuthOptions
	now    func() time.Time
}

type signupClaims struct {
	State models.SignupState `json:"state"`
	jwt.RegisteredClaims
}

type emailClaims struct {
	Redirect string `json:"redirect"`
	jwt.RegisteredClaims
}

func NewAuthService(secret string, opts AuthOptions) AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &authService{secret: []byte(secret), opts: opts, now: time.Now}
}

func (s *authService) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(b), nil
}

func (s *authService) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *authService) registered(subject, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *authService) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *authService) parse(token, audience string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return err
}

func (s *authService) IssueAccessToken(identityID string) (string, time.Time, error) {
	claims := s.registered(identityID, audienceAccess, s.opts.AccessTTL)
	signed, err := s.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (s *authService) ParseAccessToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	if err := s.parse(token, audienceAccess, &claims); err != nil || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *authService) IssueSignupToken(state *models.SignupState) (string, error) {
	if state == nil {
		return "", errors.New("nil signup state")
	}
	return s.sign(&signupClaims{
		State:            *state,
		RegisteredClaims: s.registered("", audienceSignup, s.opts.SignupTTL),
	})
}

func (s *authService) ParseSignupToken(token string) (*models.SignupState, error) {
	var claims signupClaims
	if err := s.parse(token, audienceSignup, &claims); err != nil {
		return nil, ErrInvalidSignupToken
	}
	st := claims.State
	return &st, nil
}

func (s *authService) IssueEmailToken(identityID, redirectURL string) (string, error) {
	return s.sign(&emailClaims{
		Redirect:         redirectURL,
		RegisteredClaims: s.registered(identityID, audienceEmailConfirm, s.opts.EmailTTL),
	})
}

func (s *authService) ParseEmailToken(token string) (string, string, error) {
	var claims emailClaims
	if err := s.parse(token, audienceEmailConfirm, &claims); err != nil || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Redirect, nil
}
