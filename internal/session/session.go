// Package session implements the account flows layered on the API client:
// startup routing, login, first-time setup, secret-key recovery and
// profile changes. Credentials and setup state live in the settings
// store.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/delvicier/fixagent/internal/api"
	"github.com/delvicier/fixagent/internal/qr"
	"github.com/delvicier/fixagent/internal/settings"
	"github.com/delvicier/fixagent/pkg/models"
	"go.uber.org/zap"
)

// MinSetupTokenLength is the shortest setup token accepted from a scan.
const MinSetupTokenLength = 6

var (
	ErrMissingFields      = errors.New("complete all fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("resource already exists")
	ErrSetupTokenMissing  = errors.New("setup token missing, scan the setup code again")
	ErrSetupTokenInvalid  = errors.New("setup token too short")
	ErrSetupTokenPresent  = errors.New("a setup token is already stored")
	ErrInvalidSecretKey   = errors.New("secret key incorrect or invalid")
	ErrNoSecretKey        = errors.New("no secret key stored")
	ErrEmptyResponse      = errors.New("backend returned an empty response")
	ErrResetTokenMissing  = errors.New("reset token missing, recover again")
)

// StatusError reports a non-2xx backend answer.
type StatusError struct {
	Code    int
	Problem *api.Problem
}

func (e *StatusError) Error() string {
	return MessageFor(e.Code)
}

// Is maps 401 to ErrInvalidCredentials and 409 to ErrConflict.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.Code == 401
	case ErrConflict:
		return e.Code == 409
	}
	return false
}

// MessageFor is the user-facing text for an HTTP error status.
func MessageFor(status int) string {
	switch status {
	case 401:
		return "invalid credentials"
	case 409:
		return "conflict: resource already exists"
	}
	return fmt.Sprintf("server error (%d)", status)
}

// Message is the user-facing text for any error returned by this package
// or the API client.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *api.TransportError
	var se *StatusError
	switch {
	case errors.Is(err, api.ErrNotConfigured):
		return "no server configured: run a scan or connect to an address"
	case errors.As(err, &te):
		return "connection error: " + te.Err.Error()
	case errors.As(err, &se):
		return MessageFor(se.Code)
	case errors.Is(err, qr.ErrNoCode):
		return "no valid code found in the image"
	}
	return err.Error()
}

func statusError[T any](res *api.Result[T]) error {
	return &StatusError{Code: res.StatusCode, Problem: res.Problem}
}

// Store is the subset of the settings store the flows use.
type Store interface {
	Snapshot() settings.Snapshot
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
	SetSetupToken(ctx context.Context, token string) error
	ClearSetupToken(ctx context.Context) error
	SaveSecretKey(ctx context.Context, secret string) error
	ConfirmBackup(ctx context.Context) error
}

// Backend is the subset of the API client the flows use.
type Backend interface {
	Status(ctx context.Context) (*api.Result[models.StatusResponse], error)
	Login(ctx context.Context, creds models.Credentials) (*api.Result[models.LoginResponse], error)
	Setup(ctx context.Context, setupToken string, creds models.Credentials) (*api.Result[models.SetupResponse], error)
	Recover(ctx context.Context, secretKey string) (*api.Result[models.RecoverResponse], error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) (*api.Result[models.MessageResponse], error)
	UpdateUsername(ctx context.Context, username string) (*api.Result[models.UserProfile], error)
	ChangePassword(ctx context.Context, current, next string) (*api.Result[models.MessageResponse], error)
}

// Compile-time interface guards.
var (
	_ Store   = (*settings.Store)(nil)
	_ Backend = (*api.Client)(nil)
)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the account flows.
type Service struct {
	store   Store
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Service.
func New(store Store, backend Backend, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, backend: backend, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login signs in and stores the issued token.
func (s *Service) Login(ctx context.Context, username, password string) error {
	username, password = strings.TrimSpace(username), strings.TrimSpace(password)
	if username == "" || password == "" {
		return ErrMissingFields
	}

	res, err := s.backend.Login(ctx, models.Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}
	if !res.OK() {
		return statusError(res)
	}
	if res.Body == nil || res.Body.AccessToken == "" {
		return ErrEmptyResponse
	}
	if err := s.store.SetToken(ctx, res.Body.AccessToken); err != nil {
		return err
	}
	s.logger.Info("signed in", zap.String("user", username))
	return nil
}

// Logout forgets the stored token.
func (s *Service) Logout(ctx context.Context) error {
	return s.store.ClearToken(ctx)
}

// AcceptSetupToken stores a scanned setup token. Tokens shorter than
// MinSetupTokenLength are rejected, and a stored
// token is never replaced; call ResetSetupToken first.
func (s *Service) AcceptSetupToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if s.store.Snapshot().SetupToken != "" {
		return ErrSetupTokenPresent
	}
	if len(token) < MinSetupTokenLength {
		return ErrSetupTokenInvalid
	}
	return s.store.SetSetupToken(ctx, token)
}

// ResetSetupToken forgets the stored setup token.
func (s *Service) ResetSetupToken(ctx context.Context) error {
	return s.store.ClearSetupToken(ctx)
}

// CreateAccount creates the backend's single account using the stored
// setup token, stores the returned secret key with its backup pending,
// and returns it.
func (s *Service) CreateAccount(ctx context.Context, username, password string) (string, error) {
	username, password = strings.TrimSpace(username), strings.TrimSpace(password)
	if username == "" || password == "" {
		return "", ErrMissingFields
	}
	setupToken := s.store.Snapshot().SetupToken
	if setupToken == "" {
		return "", ErrSetupTokenMissing
	}

	res, err := s.backend.Setup(ctx, setupToken, models.Credentials{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", statusError(res)
	}
	if res.Body == nil || res.Body.SecretKey == "" {
		return "", ErrEmptyResponse
	}
	if err := s.store.SaveSecretKey(ctx, res.Body.SecretKey); err != nil {
		return "", err
	}
	s.logger.Info("account created", zap.String("user", username))
	return res.Body.SecretKey, nil
}

// ConfirmBackup records that the secret key was saved by the user.
func (s *Service) ConfirmBackup(ctx context.Context) error {
	return s.store.ConfirmBackup(ctx)
}

// SecretKeyPNG renders the stored secret key as a QR code.
func (s *Service) SecretKeyPNG(size int) ([]byte, error) {
	secret := s.store.Snapshot().SecretKey
	if secret == "" {
		return nil, ErrNoSecretKey
	}
	return qr.EncodePNG(secret, size)
}

// RecoverFromImage reads the secret key from a QR image and exchanges it
// for a password reset token.
func (s *Service) RecoverFromImage(ctx context.Context, r io.Reader) (string, error) {
	key, err := qr.Decode(r)
	if err != nil {
		return "", err
	}
	return s.RecoverWithKey(ctx, key)
}

// RecoverWithKey exchanges a typed secret key for a password reset token.
func (s *Service) RecoverWithKey(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrMissingFields
	}
	res, err := s.backend.Recover(ctx, key)
	if err != nil {
		return "", err
	}
	if !res.OK() || res.Body == nil || res.Body.ResetToken == "" {
		return "", ErrInvalidSecretKey
	}
	return res.Body.ResetToken, nil
}

// ResetPassword sets a new password with a reset token from recovery.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword, confirm string) error {
	if err := checkNewPassword(newPassword, confirm); err != nil {
		return err
	}
	if resetToken == "" {
		return ErrResetTokenMissing
	}
	res, err := s.backend.ResetPassword(ctx, resetToken, newPassword)
	if err != nil {
		return err
	}
	if !res.OK() {
		return statusError(res)
	}
	return nil
}

// ChangePassword replaces the signed-in user's password.
func (s *Service) ChangePassword(ctx context.Context, current, newPassword, confirm string) error {
	if strings.TrimSpace(current) == "" {
		return ErrMissingFields
	}
	if err := checkNewPassword(newPassword, confirm); err != nil {
		return err
	}
	res, err := s.backend.ChangePassword(ctx, current, newPassword)
	if err != nil {
		return err
	}
	if !res.OK() {
		return statusError(res)
	}
	return nil
}

// UpdateUsername renames the signed-in user.
func (s *Service) UpdateUsername(ctx context.Context, name string) (*models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingFields
	}
	res, err := s.backend.UpdateUsername(ctx, name)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, statusError(res)
	}
	if res.Body == nil {
		return nil, ErrEmptyResponse
	}
	return res.Body, nil
}

func checkNewPassword(newPassword, confirm string) error {
	if strings.TrimSpace(newPassword) == "" || strings.TrimSpace(confirm) == "" {
		return ErrMissingFields
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
