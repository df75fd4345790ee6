package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voty/internal/middleware"
	"voty/internal/services"
)

// errorStatus maps a service error to the HTTP status and the message shown
// to the user. Unknown errors are never echoed back.
func errorStatus(err error) (int, string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, services.ErrCodeExpiredOrInvalid):
		return http.StatusBadRequest, services.ErrCodeExpiredOrInvalid.Error()
	case errors.Is(err, services.ErrAttemptsExceeded):
		return http.StatusTooManyRequests, services.ErrAttemptsExceeded.Error()
	case errors.Is(err, services.ErrThrottled):
		return http.StatusTooManyRequests, services.ErrThrottled.Error()
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, services.ErrInvalidTransition.Error()
	case errors.Is(err, services.ErrInvalidSignupToken):
		return http.StatusUnauthorized, services.ErrInvalidSignupToken.Error()
	case errors.Is(err, services.ErrPhoneNotVerified):
		return http.StatusForbidden, services.ErrPhoneNotVerified.Error()
	case errors.Is(err, services.ErrIdentityCreationFailed):
		if errors.Is(err, services.ErrEmailTaken) {
			return http.StatusConflict, services.ErrEmailTaken.Error()
		}
		return http.StatusBadGateway, "could not create your account, please try again"
	case errors.Is(err, services.ErrProfileCreationFailed):
		return http.StatusBadGateway, "could not save your profile, please try again"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, services.ErrInvalidCredentials.Error()
	case errors.Is(err, services.ErrInvalidToken):
		return http.StatusBadRequest, services.ErrInvalidToken.Error()
	case errors.Is(err, services.ErrTokenUsed):
		return http.StatusBadRequest, services.ErrTokenUsed.Error()
	case errors.Is(err, services.ErrTransport):
		return http.StatusBadGateway, "a remote service is unavailable, please try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

func identityFromCtx(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.IdentityKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
