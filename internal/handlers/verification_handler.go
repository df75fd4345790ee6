package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voty/internal/services"
)

type VerificationHandler struct {
	svc services.VerificationService
}

func NewVerificationHandler(svc services.VerificationService) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

type SendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	CountryCode string `json:"countryCode"`
}

type VerifyCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	CountryCode string `json:"countryCode"`
	Code        string `json:"code"`
}

// @Summary      Send a verification code
// @Description  Issues a 6-digit code for the phone and sends it by SMS. A new code replaces any earlier one.
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        request  body      SendCodeRequest  true  "Phone number and country code"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /auth/send-verification-code [post]
func (h *VerificationHandler) SendCode(c *gin.Context) {
	var req SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.IssueCode(c.Request.Context(), req.PhoneNumber, req.CountryCode); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification code sent"})
}

// @Summary      Verify a code
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        request  body      VerifyCodeRequest  true  "Phone, country code and the received code"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Router       /auth/verify-code [post]
func (h *VerificationHandler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ok, err := h.svc.VerifyCode(c.Request.Context(), req.PhoneNumber, req.CountryCode, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ok, "message": "Phone verified"})
}
