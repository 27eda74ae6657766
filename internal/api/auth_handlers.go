package api

import (
	"net/http"

	"example.com/hydrofarm/services/farm/internal/core"
	"github.com/gin-gonic/gin"
)

func (h *APIHandlers) Register(c *gin.Context) {
	var in core.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.services.Auth.Register(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *APIHandlers) VerifyEmail(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.services.Auth.VerifyEmail(c.Request.Context(), body.Email, body.Code)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *APIHandlers) ResendVerification(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.services.Auth.ResendVerification(c.Request.Context(), body.Email); err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

func (h *APIHandlers) Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, user, err := h.services.Auth.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *APIHandlers) RequestPasswordReset(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.services.Auth.RequestPasswordReset(c.Request.Context(), body.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists, a reset mail was sent"})
}

func (h *APIHandlers) ResetPassword(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.services.Auth.ResetPassword(c.Request.Context(), body.Email, body.Token, body.Password); err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (h *APIHandlers) Profile(c *gin.Context) {
	user, err := h.services.Auth.Profile(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// respondAuthError maps credential and token failures to 401 before falling
// back to the shared mapping.
func (h *APIHandlers) respondAuthError(c *gin.Context, err error) {
	switch err {
	case core.ErrInvalidCredentials, core.ErrEmailNotVerified,
		core.ErrInvalidToken, core.ErrInvalidOTP:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.respondError(c, err)
	}
}
