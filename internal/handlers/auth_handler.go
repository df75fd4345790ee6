package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voty/internal/models"
	"voty/internal/services"
)

type AuthHandler struct {
	users      services.UserService
	identities services.IdentityService
	log        *zap.Logger
}

func NewAuthHandler(users services.UserService, identities services.IdentityService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{users: users, identities: identities, log: log}
}

// @Summary      Log in
// @Description  Checks email and password and returns an access token with the session user
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  services.LoginResult
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	res, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.log.Info("login", zap.String("identity_id", res.User.ID))
	c.JSON(http.StatusOK, res)
}

// @Summary      Current user
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.SessionUser
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := identityFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.users.GetSessionUser(c.Request.Context(), id)
	if err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusBadRequest {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Confirm email
// @Description  Target of the link in the confirmation email. Redirects to the app on success.
// @Tags         Auth
// @Param        token  query  string  true  "Confirmation token"
// @Success      302
// @Failure      400  {object}  map[string]string
// @Router       /auth/confirm-email [get]
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	redirect, err := h.identities.ConfirmEmail(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	if redirect == "" {
		c.JSON(http.StatusOK, gin.H{"message": "Email confirmed"})
		return
	}
	c.Redirect(http.StatusFound, redirect)
}
