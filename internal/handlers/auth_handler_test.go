package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"voty/internal/middleware"
	"voty/internal/models"
	"voty/internal/services"
)

func authRouter(users services.UserService, identities services.IdentityService, identityID string) *gin.Engine {
	h := NewAuthHandler(users, identities, nil)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.GET("/auth/confirm-email", h.ConfirmEmail)
	r.GET("/auth/me", func(c *gin.Context) {
		if identityID != "" {
			c.Set(middleware.IdentityKey, identityID)
		}
		c.Next()
	}, h.Me)
	return r
}

func TestLoginHandler(t *testing.T) {
	users := new(mockUserService)
	users.On("Login", mock.Anything, "ada@example.com", "s3cret-pass").Return(&services.LoginResult{
		AccessToken: "jwt",
		ExpiresAt:   time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
		User:        &models.SessionUser{ID: "id-1", Name: "Ada Obi", Email: "ada@example.com", Role: "user"},
	}, nil).Once()
	users.On("Login", mock.Anything, "ada@example.com", "wrong").Return(nil, services.ErrInvalidCredentials).Once()
	r := authRouter(users, nil, "")

	w := doJSON(r, http.MethodPost, "/auth/login", models.LoginRequest{Email: "ada@example.com", Password: "s3cret-pass"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jwt", decodeBody(w)["accessToken"])

	w = doJSON(r, http.MethodPost, "/auth/login", models.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/login", models.LoginRequest{Email: "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	users.AssertExpectations(t)
}

func TestMeHandler(t *testing.T) {
	users := new(mockUserService)
	users.On("GetSessionUser", mock.Anything, "id-1").Return(&models.SessionUser{ID: "id-1", Name: "Ada Obi"}, nil).Once()

	w := doJSON(authRouter(users, nil, "id-1"), http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada Obi", decodeBody(w)["name"])

	w = doJSON(authRouter(users, nil, ""), http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	users.AssertExpectations(t)
}

func TestMeHandlerUnknownIdentity(t *testing.T) {
	users := new(mockUserService)
	users.On("GetSessionUser", mock.Anything, "gone").Return(nil, services.ErrInvalidToken).Once()

	w := doJSON(authRouter(users, nil, "gone"), http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConfirmEmailHandler(t *testing.T) {
	identities := new(mockIdentityService)
	identities.On("ConfirmEmail", mock.Anything, "good").Return("http://app.test/welcome", nil).Once()
	identities.On("ConfirmEmail", mock.Anything, "plain").Return("", nil).Once()
	identities.On("ConfirmEmail", mock.Anything, "bad").Return("", services.ErrInvalidToken).Once()
	r := authRouter(nil, identities, "")

	w := doJSON(r, http.MethodGet, "/auth/confirm-email?token=good", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://app.test/welcome", w.Header().Get("Location"))

	w = doJSON(r, http.MethodGet, "/auth/confirm-email?token=plain", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/auth/confirm-email?token=bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/auth/confirm-email", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	identities.AssertExpectations(t)
}

func TestPasswordResetHandlers(t *testing.T) {
	svc := new(mockPasswordResetService)
	svc.On("RequestReset", mock.Anything, "ada@example.com").Return(nil).Once()
	svc.On("ResetPassword", mock.Anything, "tok", "n3w-password").Return(nil).Once()
	svc.On("ResetPassword", mock.Anything, "used", "n3w-password").Return(services.ErrTokenUsed).Once()

	h := NewPasswordResetHandler(svc)
	r := gin.New()
	r.POST("/auth/password/forgot", h.Forgot)
	r.POST("/auth/password/reset", h.Reset)

	w := doJSON(r, http.MethodPost, "/auth/password/forgot", ForgotPasswordRequest{Email: "ada@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/password/forgot", ForgotPasswordRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/password/reset", ResetPasswordRequest{Token: "tok", NewPassword: "n3w-password"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/auth/password/reset", ResetPasswordRequest{Token: "used", NewPassword: "n3w-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.ErrTokenUsed.Error(), decodeBody(w)["error"])
	svc.AssertExpectations(t)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	for _, tc := range []struct {
		db     Pinger
		status int
	}{
		{fakePinger{}, http.StatusOK},
		{fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	} {
		r := gin.New()
		r.GET("/healthz", NewHealthHandler(tc.db).Healthz)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, tc.status, w.Code)
	}
}
