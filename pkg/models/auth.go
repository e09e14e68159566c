package models

// StatusResponse is returned by GET auth/status.
type StatusResponse struct {
	IsConfigured bool `json:"isConfigured"`
}

// Credentials is the body for auth/login and auth/setup.
type Credentials struct {
	Username string `json:"usuario" validate:"required"`
	Password string `json:"contraseña" validate:"required"`
}

// LoginResponse carries the bearer token issued on login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// SetupResponse carries the one-time recovery secret issued at setup.
type SetupResponse struct {
	Message   string `json:"message"`
	SecretKey string `json:"secret_key"`
}

// RecoverRequest exchanges a secret key for a reset token.
type RecoverRequest struct {
	SecretKey string `json:"secret_key" validate:"required"`
}

// RecoverResponse carries the short-lived password reset token.
type RecoverResponse struct {
	ResetToken string `json:"reset_token"`
}

// ResetPasswordRequest is the body for auth/reset-password.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

// MessageResponse is the generic {message} body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ImageUploadResponse is returned by POST images/image.
type ImageUploadResponse struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}
