package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voty/internal/handlers"
	"voty/internal/middleware"
)

type Handlers struct {
	Verification  *handlers.VerificationHandler
	Signup        *handlers.SignupHandler
	Auth          *handlers.AuthHandler
	PasswordReset *handlers.PasswordResetHandler
	Health        *handlers.HealthHandler
	Metrics       http.Handler // nil: /metrics not exposed
}

func SetupRoutes(r *gin.Engine, h Handlers, tokens middleware.TokenParser) *gin.Engine {
	// ---- ops
	r.GET("/healthz", h.Health.Healthz)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	// ---- public
	auth := r.Group("/auth")
	{
		auth.POST("/send-verification-code", h.Verification.SendCode)
		auth.POST("/verify-code", h.Verification.VerifyCode)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/confirm-email", h.Auth.ConfirmEmail)
		auth.POST("/password/forgot", h.PasswordReset.Forgot)
		auth.POST("/password/reset", h.PasswordReset.Reset)
	}

	signup := r.Group("/signup")
	{
		signup.POST("/basic-info", h.Signup.BasicInfo)
		signup.POST("/resend", h.Signup.Resend)
		signup.POST("/verify", h.Signup.Verify)
		signup.POST("/next", h.Signup.Next)
		signup.POST("/back", h.Signup.Back)
		signup.POST("/complete", h.Signup.Complete)
	}

	// ---- protected
	protected := r.Group("/auth", middleware.AuthMiddleware(tokens))
	{
		protected.GET("/me", h.Auth.Me)
	}

	return r
}
