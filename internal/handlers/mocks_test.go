package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"voty/internal/models"
	"voty/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockVerificationService struct{ mock.Mock }

func (m *mockVerificationService) IssueCode(ctx context.Context, phone, countryCode string) error {
	return m.Called(ctx, phone, countryCode).Error(0)
}

func (m *mockVerificationService) VerifyCode(ctx context.Context, phone, countryCode, code string) (bool, error) {
	args := m.Called(ctx, phone, countryCode, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockVerificationService) IsVerified(ctx context.Context, phone, countryCode string) (bool, error) {
	args := m.Called(ctx, phone, countryCode)
	return args.Bool(0), args.Error(1)
}

func (m *mockVerificationService) Consume(ctx context.Context, phone, countryCode string) (*models.PhoneVerification, error) {
	args := m.Called(ctx, phone, countryCode)
	v, _ := args.Get(0).(*models.PhoneVerification)
	return v, args.Error(1)
}

func (m *mockVerificationService) Restore(ctx context.Context, v *models.PhoneVerification) error {
	return m.Called(ctx, v).Error(0)
}

type mockSignupService struct{ mock.Mock }

func signupResult(args mock.Arguments) (*services.SignupResult, error) {
	res, _ := args.Get(0).(*services.SignupResult)
	return res, args.Error(1)
}

func (m *mockSignupService) SubmitBasicInfo(ctx context.Context, req models.BasicInfoRequest) (*services.SignupResult, error) {
	return signupResult(m.Called(ctx, req))
}

func (m *mockSignupService) ResendCode(ctx context.Context, token string) (*services.SignupResult, error) {
	return signupResult(m.Called(ctx, token))
}

func (m *mockSignupService) VerifyCode(ctx context.Context, token, code string) (*services.SignupResult, error) {
	return signupResult(m.Called(ctx, token, code))
}

func (m *mockSignupService) Advance(ctx context.Context, token string) (*services.SignupResult, error) {
	return signupResult(m.Called(ctx, token))
}

func (m *mockSignupService) Back(ctx context.Context, token string) (*services.SignupResult, error) {
	return signupResult(m.Called(ctx, token))
}

func (m *mockSignupService) Complete(ctx context.Context, req models.CredentialsRequest) (*services.SignupResult, error) {
	return signupResult(m.Called(ctx, req))
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*services.LoginResult)
	return res, args.Error(1)
}

func (m *mockUserService) GetSessionUser(ctx context.Context, identityID string) (*models.SessionUser, error) {
	args := m.Called(ctx, identityID)
	u, _ := args.Get(0).(*models.SessionUser)
	return u, args.Error(1)
}

// mockIdentityService only backs ConfirmEmail; the rest is unused by handlers.
type mockIdentityService struct {
	services.IdentityService
	mock.Mock
}

func (m *mockIdentityService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type mockPasswordResetService struct{ mock.Mock }

func (m *mockPasswordResetService) RequestReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockPasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.Called(ctx, token, newPassword).Error(0)
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}
