package gateway

import (
	"errors"
	"net/http"
	"strings"

	"tailorly/internal/authctx"
	"tailorly/internal/role"

	"github.com/gin-gonic/gin"
)

// LoginRequest is the login form, accepted as form fields or JSON
type LoginRequest struct {
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required"`
	Role     string `form:"role" json:"role" binding:"required"`
}

// ResetPasswordRequest is the password reset form. Email defaults to the
// signed-in user's address and may not name any other account.
type ResetPasswordRequest struct {
	Email           string `form:"email" json:"email" binding:"omitempty,email"`
	NewPassword     string `form:"new_password" json:"new_password" binding:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" binding:"omitempty,eqfield=NewPassword"`
}

// AuthHandler serves the login, logout and password reset screens
type AuthHandler struct{}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// parseRoleInput accepts either the role constant or its user type spelling
func parseRoleInput(s string) role.Role {
	return role.Role(strings.ToUpper(strings.TrimSpace(s)))
}

// respondOutcome redirects page loads and returns the Outcome to scripts
func respondOutcome(c *gin.Context, status int, out authctx.Outcome) {
	if !wantsJSON(c) && out.Redirect != "" {
		c.Redirect(http.StatusSeeOther, out.Redirect)
		return
	}
	c.JSON(status, out)
}

// LoginPage renders the login screen, or sends a signed-in browser home
func (h *AuthHandler) LoginPage(c *gin.Context) {
	snap := authContext(c).Snapshot()
	if r, ok := snap.Role(); ok {
		dashboard, _ := role.Dashboard(r)
		respondOutcome(c, http.StatusOK, authctx.Outcome{OK: true, Redirect: dashboard})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":  "login",
		"roles": role.All(),
	})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid_request",
			"notice": "Email, password and role are required.",
		})
		return
	}

	r := parseRoleInput(req.Role)
	if !r.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid_request",
			"notice": "Choose one of the listed roles.",
		})
		return
	}

	out := authContext(c).Login(c.Request.Context(), req.Email, req.Password, r)
	switch {
	case out.OK:
		c.Set(ctxRole, r.String())
		respondOutcome(c, http.StatusOK, out)
	case out.Notice == authctx.NoticeLoginPending:
		c.JSON(http.StatusConflict, out)
	default:
		c.JSON(http.StatusUnauthorized, out)
	}
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	out := authContext(c).Logout(c.Request.Context())
	respondOutcome(c, http.StatusOK, out)
}

// ResetPasswordPage renders the password reset screen
func (h *AuthHandler) ResetPasswordPage(c *gin.Context) {
	snap := authContext(c).Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"page":        "reset_password",
		"profile":     snap.Profile,
		"first_login": snap.Profile != nil && snap.Profile.IsFirstLogin,
		"navigation":  snap.Navigation(),
	})
}

// ResetPassword handles POST /reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid_request",
			"notice": "Enter a new password of at least 6 characters and confirm it.",
		})
		return
	}

	out, err := authContext(c).ResetPassword(c.Request.Context(), req.Email, req.NewPassword)
	switch {
	case errors.Is(err, authctx.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, out)
		return
	case errors.Is(err, authctx.ErrForeignAccount):
		c.JSON(http.StatusForbidden, out)
		return
	}
	if !out.OK {
		c.JSON(http.StatusBadGateway, out)
		return
	}
	respondOutcome(c, http.StatusOK, out)
}
