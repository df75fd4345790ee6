package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"voty/internal/models"
)

// SignupResult is the wizard state after a step together with the token the
// client must present on the next one.
type SignupResult struct {
	State   *models.SignupState `json:"state"`
	Token   string              `json:"signupToken"`
	Profile *models.Profile     `json:"profile,omitempty"`
}

type SignupService interface {
	SubmitBasicInfo(ctx context.Context, req models.BasicInfoRequest) (*SignupResult, error)
	ResendCode(ctx context.Context, token string) (*SignupResult, error)
	VerifyCode(ctx context.Context, token, code string) (*SignupResult, error)
	Advance(ctx context.Context, token string) (*SignupResult, error)
	Back(ctx context.Context, token string) (*SignupResult, error)
	Complete(ctx context.Context, req models.CredentialsRequest) (*SignupResult, error)
}

type signupService struct {
	auth         AuthService
	verification VerificationService
	registration RegistrationService
	redirectURL  string
	log          *zap.Logger
}

func NewSignupService(auth AuthService, verification VerificationService, registration RegistrationService, redirectURL string, log *zap.Logger) SignupService {
	if log == nil {
		log = zap.NewNop()
	}
	return &signupService{
		auth:         auth,
		verification: verification,
		registration: registration,
		redirectURL:  redirectURL,
		log:          log,
	}
}

// load returns the state carried by token; an empty token starts a new wizard.
func (s *signupService) load(token, action string) (*models.SignupState, error) {
	var st *models.SignupState
	if strings.TrimSpace(token) == "" {
		st = models.NewSignupState()
	} else {
		parsed, err := s.auth.ParseSignupToken(token)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	if !canTransition(st.Step, action) {
		return nil, ErrInvalidTransition
	}
	return st, nil
}

func (s *signupService) result(st *models.SignupState, p *models.Profile) (*SignupResult, error) {
	token, err := s.auth.IssueSignupToken(st)
	if err != nil {
		return nil, err
	}
	return &SignupResult{State: st, Token: token, Profile: p}, nil
}

// SubmitBasicInfo records name, email and phone. A phone already verified in
// this session is kept; any other phone gets a new code.
func (s *signupService) SubmitBasicInfo(ctx context.Context, req models.BasicInfoRequest) (*SignupResult, error) {
	st, err := s.load(req.SignupToken, ActionSubmit)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, invalid("fullName", "full name is required")
	}
	if email == "" {
		return nil, invalid("email", "email is required")
	}
	cc := req.CountryCode
	if strings.TrimSpace(cc) == "" {
		cc = st.CountryCode
	}
	phone, cc, err := normalizeTarget(req.PhoneNumber, cc)
	if err != nil {
		return nil, err
	}

	samePhone := st.Verified && st.PhoneNumber == phone && st.CountryCode == cc
	st.FullName, st.Email = name, email
	if samePhone {
		st.Step = models.StepVerified
		return s.result(st, nil)
	}

	if err := s.verification.IssueCode(ctx, phone, cc); err != nil {
		return nil, err
	}
	st.PhoneNumber, st.CountryCode = phone, cc
	st.Verified = false
	st.Step = models.StepAwaitingCode
	return s.result(st, nil)
}

func (s *signupService) ResendCode(ctx context.Context, token string) (*SignupResult, error) {
	st, err := s.load(token, ActionResend)
	if err != nil {
		return nil, err
	}
	if err := s.verification.IssueCode(ctx, st.PhoneNumber, st.CountryCode); err != nil {
		return nil, err
	}
	return s.result(st, nil)
}

func (s *signupService) VerifyCode(ctx context.Context, token, code string) (*SignupResult, error) {
	st, err := s.load(token, ActionVerify)
	if err != nil {
		return nil, err
	}
	if _, err := s.verification.VerifyCode(ctx, st.PhoneNumber, st.CountryCode, code); err != nil {
		return nil, err
	}
	st.Verified = true
	st.Step = models.StepVerified
	return s.result(st, nil)
}

func (s *signupService) Advance(ctx context.Context, token string) (*SignupResult, error) {
	st, err := s.load(token, ActionAdvance)
	if err != nil {
		return nil, err
	}
	if !st.Verified {
		return nil, ErrInvalidTransition
	}
	st.Step = models.StepCollectingCredentials
	return s.result(st, nil)
}

// Back returns to the first step. Entered data and verification survive.
func (s *signupService) Back(ctx context.Context, token string) (*SignupResult, error) {
	st, err := s.load(token, ActionBack)
	if err != nil {
		return nil, err
	}
	st.Step = models.StepCollectingBasicInfo
	return s.result(st, nil)
}

func (s *signupService) Complete(ctx context.Context, req models.CredentialsRequest) (*SignupResult, error) {
	st, err := s.load(req.SignupToken, ActionComplete)
	if err != nil {
		return nil, err
	}
	profile, err := s.registration.Register(ctx, RegistrationInput{
		FullName:        st.FullName,
		Email:           st.Email,
		PhoneNumber:     st.PhoneNumber,
		CountryCode:     st.CountryCode,
		DateOfBirth:     req.DateOfBirth,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		AcceptTerms:     req.AgreeToTerms,
		RedirectURL:     s.redirectURL,
	})
	if err != nil {
		return nil, err
	}
	st.Step = models.StepRegistered
	st.ProfileID = profile.ID
	s.log.Info("sign up completed", zap.String("identity_id", profile.ID))
	return s.result(st, profile)
}
