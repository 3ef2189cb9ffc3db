package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	// DefaultService is the namespace all token items are stored under.
	DefaultService = "com.emerge.ETDistribution"

	// AccessTokenKey is the account name of the cached access token.
	AccessTokenKey = "accessToken"
	// RefreshTokenKey is the account name of the cached refresh token.
	RefreshTokenKey = "refreshToken"
)

var (
	// ErrItemNotFound is returned by a Backend when no item exists for an account.
	ErrItemNotFound = errors.New("item not found")
	// ErrDuplicateItem is returned by Backend.Insert when the item already exists.
	ErrDuplicateItem = errors.New("item already exists")
)

// Backend is a platform secret store keyed by service and account.
// Insert must fail with ErrDuplicateItem for an existing item, Update and Find
// with ErrItemNotFound for a missing one.
type Backend interface {
	Find(service, account string) ([]byte, error)
	Insert(service, account string, data []byte) error
	Update(service, account string, data []byte) error
}

// Store persists token strings through a Backend. All access is serialized
// because the exists/insert/update sequence is not atomic in the backend.
type Store struct {
	mu      sync.Mutex
	backend Backend
	service string
	logger  *slog.Logger
}

// NewStore creates a Store over backend using DefaultService.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		service: DefaultService,
		logger:  logger,
	}
}

// Get returns the value stored for key. Backend read failures are logged and
// reported as a missing value.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Find(s.service, key)
	if err != nil {
		if !errors.Is(err, ErrItemNotFound) {
			s.logger.Warn("failed to read token", "key", key, "err", err)
		}
		return "", false
	}
	return string(data), true
}

// Set stores value under key, updating an existing item or adding a new one.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := []byte(value)

	_, err := s.backend.Find(s.service, key)
	if err == nil {
		err = s.backend.Update(s.service, key, data)
	} else {
		if !errors.Is(err, ErrItemNotFound) {
			s.logger.Warn("existence check failed, trying insert", "key", key, "err", err)
		}
		err = s.backend.Insert(s.service, key, data)
		if errors.Is(err, ErrDuplicateItem) {
			// another writer added the item between Find and Insert
			err = s.backend.Update(s.service, key, data)
		}
	}

	if err != nil {
		return fmt.Errorf("%w: failed to store %s: %w", ErrStorage, key, err)
	}
	s.logger.Debug("token stored", "key", key)
	return nil
}
