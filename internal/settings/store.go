// Package settings holds the client's connection configuration: the
// backend base URL, the bearer token and the account-setup state. It is
// the single owner of those values; everything else reads snapshots.
package settings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/delvicier/fixagent/internal/event"
	"github.com/delvicier/fixagent/internal/services"
	"go.uber.org/zap"
)

// Persisted keys in core_settings.
const (
	KeyBaseURL       = "base_url"
	KeyToken         = "token"
	KeySetupToken    = "token_account"
	KeySecretKey     = "secret_key"
	KeyBackupPending = "pending_secret_backup"
)

// TopicChanged is published with the new Snapshot after every write.
const TopicChanged = "settings.connection.changed"

// ErrInvalidBaseURL is returned when a base URL is not an absolute
// http(s) URL with a host.
var ErrInvalidBaseURL = errors.New("invalid base URL")

// Snapshot is an immutable copy of the connection configuration.
type Snapshot struct {
	BaseURL       string `json:"base_url"`
	Token         string `json:"token,omitempty"`
	SetupToken    string `json:"setup_token,omitempty"`
	SecretKey     string `json:"secret_key,omitempty"`
	BackupPending bool   `json:"backup_pending"`
}

// Configured reports whether a backend address is stored.
func (s Snapshot) Configured() bool { return s.BaseURL != "" }

// Redacted returns a copy safe to log or serve: credentials are replaced
// by a marker that only says whether they are set.
func (s Snapshot) Redacted() Snapshot {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "[redacted]"
	}
	s.Token = mask(s.Token)
	s.SetupToken = mask(s.SetupToken)
	s.SecretKey = mask(s.SecretKey)
	return s
}

// NormalizeBaseURL trims whitespace and one trailing slash and checks that
// the result is an absolute http or https URL with a host.
func NormalizeBaseURL(raw string) (string, error) {
	clean := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if clean == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBaseURL)
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidBaseURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidBaseURL)
	}
	return clean, nil
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher publishes TopicChanged events on p.
func WithPublisher(p event.Publisher) Option {
	return func(s *Store) { s.bus = p }
}

// Store caches the persisted settings in memory. Reads never touch the
// database; writes go through one serialized path and hit the database
// before the cache is updated.
type Store struct {
	repo   services.SettingsRepository
	bus    event.Publisher
	logger *zap.Logger

	writeMu sync.Mutex

	mu     sync.RWMutex
	cur    Snapshot
	subs   map[uint64]chan Snapshot
	nextID uint64
}

// Open loads the current settings from repo.
func Open(ctx context.Context, repo services.SettingsRepository, logger *zap.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		repo:   repo,
		bus:    event.Discard,
		logger: logger,
		subs:   make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every key from the repository.
func (s *Store) Reload(ctx context.Context) error {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	var snap Snapshot
	for _, kv := range all {
		switch kv.Key {
		case KeyBaseURL:
			snap.BaseURL = kv.Value
		case KeyToken:
			snap.Token = kv.Value
		case KeySetupToken:
			snap.SetupToken = kv.Value
		case KeySecretKey:
			snap.SecretKey = kv.Value
		case KeyBackupPending:
			snap.BackupPending, _ = strconv.ParseBool(kv.Value)
		}
	}
	s.mu.Lock()
	s.cur = snap
	s.mu.Unlock()
	return nil
}

// Snapshot returns the current configuration.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Store) BaseURL() string     { return s.Snapshot().BaseURL }
func (s *Store) Token() string       { return s.Snapshot().Token }
func (s *Store) SetupToken() string  { return s.Snapshot().SetupToken }
func (s *Store) SecretKey() string   { return s.Snapshot().SecretKey }
func (s *Store) BackupPending() bool { return s.Snapshot().BackupPending }

// SetBaseURL validates, normalizes and stores the backend address.
func (s *Store) SetBaseURL(ctx context.Context, raw string) error {
	clean, err := NormalizeBaseURL(raw)
	if err != nil {
		return err
	}
	return s.update(ctx, map[string]*string{KeyBaseURL: &clean}, func(snap *Snapshot) {
		snap.BaseURL = clean
	})
}

// ClearBaseURL forgets the backend address.
func (s *Store) ClearBaseURL(ctx context.Context) error {
	return s.update(ctx, map[string]*string{KeyBaseURL: nil}, func(snap *Snapshot) {
		snap.BaseURL = ""
	})
}

// SetToken stores the bearer token issued at login.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	return s.update(ctx, map[string]*string{KeyToken: &token}, func(snap *Snapshot) {
		snap.Token = token
	})
}

// ClearToken removes the bearer token.
func (s *Store) ClearToken(ctx context.Context) error {
	return s.update(ctx, map[string]*string{KeyToken: nil}, func(snap *Snapshot) {
		snap.Token = ""
	})
}

// SetSetupToken stores the one-time account setup token.
func (s *Store) SetSetupToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("empty setup token")
	}
	return s.update(ctx, map[string]*string{KeySetupToken: &token}, func(snap *Snapshot) {
		snap.SetupToken = token
	})
}

// ClearSetupToken removes the setup token.
func (s *Store) ClearSetupToken(ctx context.Context) error {
	return s.update(ctx, map[string]*string{KeySetupToken: nil}, func(snap *Snapshot) {
		snap.SetupToken = ""
	})
}

// SaveSecretKey stores the recovery secret and marks its backup pending,
// in one transaction.
func (s *Store) SaveSecretKey(ctx context.Context, secret string) error {
	pending := strconv.FormatBool(true)
	return s.update(ctx, map[string]*string{
		KeySecretKey:     &secret,
		KeyBackupPending: &pending,
	}, func(snap *Snapshot) {
		snap.SecretKey = secret
		snap.BackupPending = true
	})
}

// ConfirmBackup records that the user saved the secret key.
func (s *Store) ConfirmBackup(ctx context.Context) error {
	done := strconv.FormatBool(false)
	return s.update(ctx, map[string]*string{KeyBackupPending: &done}, func(snap *Snapshot) {
		snap.BackupPending = false
	})
}

// Subscribe returns a channel that receives the latest Snapshot after
// each write. Only the newest value is kept if the reader falls behind.
// Call the returned function to stop receiving.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) update(ctx context.Context, values map[string]*string, apply func(*Snapshot)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.SetMany(ctx, values); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.mu.Lock()
	apply(&s.cur)
	snap := s.cur
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	s.mu.Unlock()

	s.logger.Debug("connection settings updated",
		zap.String("base_url", snap.BaseURL),
		zap.Bool("has_token", snap.Token != ""),
	)
	s.bus.PublishAsync(ctx, event.Event{
		Topic:   TopicChanged,
		Source:  "settings",
		Payload: snap.Redacted(),
	})
	return nil
}
