// Package authclient is a thin HTTP client for the remote API's
// authentication endpoints. Every call is a single request/response with no
// retry; any failure collapses to ErrLoginFailed or ErrResetFailed.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tailorly/internal/role"
	"tailorly/internal/session"
	"tailorly/internal/upstream"
)

var (
	// ErrLoginFailed is returned for every unsuccessful login attempt
	ErrLoginFailed = errors.New("login failed")
	// ErrResetFailed is returned for every unsuccessful password reset
	ErrResetFailed = errors.New("reset failed")
	// ErrNoCredential is wrapped when the API reports success but issues no token
	ErrNoCredential = errors.New("no credential issued")
)

// Endpoint paths on the remote API
const (
	loginPathPrefix   = "/api/auth/login/"
	resetPasswordPath = "/api/auth/reset_password"
)

// LoginResult is what a successful login yields
type LoginResult struct {
	Token   string
	Profile session.Profile
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Token   string           `json:"token,omitempty"`
	Admin   *session.Profile `json:"admin,omitempty"`
	User    *session.Profile `json:"user,omitempty"`
}

type resetRequest struct {
	UserType    string `json:"user_type"`
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

type resetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Client calls the remote API's auth endpoints
type Client struct {
	api *upstream.Client
}

// New creates a client. A zero timeout selects upstream.DefaultTimeout.
func New(resolver upstream.Resolver, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{api: upstream.NewClient(resolver, timeout, logger)}
}

// LoginAs authenticates email/password against the login endpoint of r
func (c *Client) LoginAs(ctx context.Context, r role.Role, email, password string) (*LoginResult, error) {
	userType, ok := role.UserType(r)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrLoginFailed, r)
	}

	var body loginResponse
	header, err := c.api.PostJSON(ctx, loginPathPrefix+userType, "", credentials{Email: email, Password: password}, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if !body.Success {
		return nil, fmt.Errorf("%w: %s", ErrLoginFailed, rejection(body.Message))
	}

	profile := body.Admin
	if profile == nil {
		profile = body.User
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: response carries no profile", ErrLoginFailed)
	}

	token := body.Token
	if token == "" {
		token = bearerToken(header.Get("Authorization"))
	}
	if token == "" {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, ErrNoCredential)
	}

	return &LoginResult{Token: token, Profile: *profile}, nil
}

// ResetPassword sets a new password for the account identified by userType
// and email, authenticated by the session's bearer token
func (c *Client) ResetPassword(ctx context.Context, token, userType, email, newPassword string) error {
	var body resetResponse
	req := resetRequest{UserType: userType, Email: email, NewPassword: newPassword}
	if _, err := c.api.PostJSON(ctx, resetPasswordPath, token, req, &body); err != nil {
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}
	if !body.Success {
		return fmt.Errorf("%w: %s", ErrResetFailed, rejection(body.Message))
	}
	return nil
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func rejection(msg string) string {
	if msg == "" {
		return "rejected by server"
	}
	return msg
}
