package api

import (
	"context"
	"net/http"

	"github.com/delvicier/fixagent/pkg/models"
)

// Status reports whether the backend already has an account configured.
func (c *Client) Status(ctx context.Context) (*Result[models.StatusResponse], error) {
	return send[models.StatusResponse](ctx, c, request{method: http.MethodGet, path: "auth/status"})
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*Result[models.LoginResponse], error) {
	return send[models.LoginResponse](ctx, c, request{method: http.MethodPost, path: "auth/login", body: creds})
}

// Setup creates the single account, authorized by the one-time setup
// token instead of the stored bearer token.
func (c *Client) Setup(ctx context.Context, setupToken string, creds models.Credentials) (*Result[models.SetupResponse], error) {
	return send[models.SetupResponse](ctx, c, request{
		method: http.MethodPost,
		path:   "auth/setup",
		body:   creds,
		bearer: setupToken,
	})
}

// Recover exchanges the recovery secret for a password reset token.
func (c *Client) Recover(ctx context.Context, secretKey string) (*Result[models.RecoverResponse], error) {
	return send[models.RecoverResponse](ctx, c, request{
		method: http.MethodPost,
		path:   "auth/recover",
		body:   models.RecoverRequest{SecretKey: secretKey},
	})
}

// ResetPassword sets a new password, authorized by the reset token.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) (*Result[models.MessageResponse], error) {
	return send[models.MessageResponse](ctx, c, request{
		method: http.MethodPost,
		path:   "auth/reset-password",
		body:   models.ResetPasswordRequest{NewPassword: newPassword},
		bearer: resetToken,
	})
}

// Profile returns the signed-in user.
func (c *Client) Profile(ctx context.Context) (*Result[models.UserProfile], error) {
	return send[models.UserProfile](ctx, c, request{method: http.MethodGet, path: "user/profile"})
}

// UpdateUsername renames the signed-in user.
func (c *Client) UpdateUsername(ctx context.Context, username string) (*Result[models.UserProfile], error) {
	return send[models.UserProfile](ctx, c, request{
		method: http.MethodPut,
		path:   "user/profile",
		body:   models.ChangeUsernameRequest{Username: username},
	})
}

// ChangePassword replaces the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) (*Result[models.MessageResponse], error) {
	return send[models.MessageResponse](ctx, c, request{
		method: http.MethodPut,
		path:   "user/password",
		body:   models.ChangePasswordRequest{CurrentPassword: current, NewPassword: next},
	})
}
