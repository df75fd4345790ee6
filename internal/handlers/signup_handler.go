package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voty/internal/models"
	"voty/internal/services"
)

// SignupHandler drives the sign-up wizard. Every response carries the new
// state and the signupToken to send with the next step.
type SignupHandler struct {
	svc services.SignupService
}

func NewSignupHandler(svc services.SignupService) *SignupHandler {
	return &SignupHandler{svc: svc}
}

type SignupTokenRequest struct {
	SignupToken string `json:"signupToken"`
}

type SignupVerifyRequest struct {
	SignupToken string `json:"signupToken"`
	Code        string `json:"code"`
}

func (h *SignupHandler) reply(c *gin.Context, res *services.SignupResult, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Sign up: basic info
// @Description  Starts the wizard (empty signupToken) or updates name, email and phone. Sends a code unless the phone is already verified.
// @Tags         Signup
// @Accept       json
// @Produce      json
// @Param        request  body      models.BasicInfoRequest  true  "Basic info"
// @Success      200      {object}  services.SignupResult
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /signup/basic-info [post]
func (h *SignupHandler) BasicInfo(c *gin.Context) {
	var req models.BasicInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.svc.SubmitBasicInfo(c.Request.Context(), req)
	h.reply(c, res, err)
}

// @Summary      Sign up: resend code
// @Tags         Signup
// @Accept       json
// @Produce      json
// @Param        request  body      SignupTokenRequest  true  "Wizard token"
// @Success      200      {object}  services.SignupResult
// @Failure      401      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Router       /signup/resend [post]
func (h *SignupHandler) Resend(c *gin.Context) {
	var req SignupTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.svc.ResendCode(c.Request.Context(), req.SignupToken)
	h.reply(c, res, err)
}

// @Summary      Sign up: verify code
// @Tags         Signup
// @Accept       json
// @Produce      json
// @Param        request  body      SignupVerifyRequest  true  "Wizard token and code"
// @Success      200      {object}  services.SignupResult
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Router       /signup/verify [post]
func (h *SignupHandler) Verify(c *gin.Context) {
	var req SignupVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.svc.VerifyCode(c.Request.Context(), req.SignupToken, req.Code)
	h.reply(c, res, err)
}

// @Summary      Sign up: continue to credentials
// @Tags         Signup
// @Accept       json
// @Produce      json
// @Param        request  body      SignupTokenRequest  true  "Wizard token"
// @Success      200      {object}  services.SignupResult
// @Failure      401      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Router       /signup/next [post]
func (h *SignupHandler) Next(c *gin.Context) {
	var req SignupTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.svc.Advance(c.Request.Context(), req.SignupToken)
	h.reply(c, res, err)
}

// @Summary      Sign up: back to basic info
// @Tags         Signup
// @Accept       json
// @Produce      json
// @Param        request  body      SignupTokenRequest  true  "Wizard token"
// @Success      200      {object}  services.SignupResult
// @Failure      401      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Router       /signup/back [post]
func (h *SignupHandler) Back(c *gin.Context) {
	var req SignupTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.svc.Back(c.Request.Context(), req.SignupToken)
	h.reply(c, res, err)
}

// @Summary      Sign up: create account
// @Description  Creates the identity and the profile. The phone must be verified.
// @Tags         Signup
// @Accept       json
// @Produce      json
// @Param        request  body      models.CredentialsRequest  true  "Credentials"
// @Success      201      {object}  services.SignupResult
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /signup/complete [post]
func (h *SignupHandler) Complete(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.svc.Complete(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
