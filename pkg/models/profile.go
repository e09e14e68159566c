package models

// UserProfile is the authenticated user's profile.
type UserProfile struct {
	ID        int    `json:"id"`
	Username  string `json:"usuario"`
	CreatedAt string `json:"fechaCreacion"`
}

// ChangeUsernameRequest is the body for PUT user/profile.
type ChangeUsernameRequest struct {
	Username string `json:"usuario" validate:"required"`
}

// ChangePasswordRequest is the body for PUT user/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}
