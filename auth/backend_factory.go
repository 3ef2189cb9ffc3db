package auth

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/adrg/xdg"
)

// BackendType selects where tokens are persisted.
type BackendType string

const (
	// BackendKeyring stores tokens in the OS keyring.
	BackendKeyring BackendType = "keyring"
	// BackendFile stores tokens in an owner-only JSON file.
	BackendFile BackendType = "file"
	// BackendMemory keeps tokens for the lifetime of the process only.
	BackendMemory BackendType = "memory"
)

// defaultTokenFileSuffix is resolved against the XDG data directory.
const defaultTokenFileSuffix = "update-cli/tokens.json"

// BackendConfig configures NewBackend.
type BackendConfig struct {
	Type BackendType
	// FilePath is the token file for BackendFile and the keyring fallback.
	// Empty means the XDG data directory.
	FilePath string
	Logger   *slog.Logger
}

// ParseBackendType parses a string into a BackendType.
// Returns BackendKeyring for unknown inputs.
func ParseBackendType(s string) BackendType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file":
		return BackendFile
	case "memory":
		return BackendMemory
	default:
		return BackendKeyring
	}
}

// String returns the string representation of a BackendType.
func (t BackendType) String() string {
	return string(t)
}

// DefaultTokenFile returns the token file path under the XDG data directory.
func DefaultTokenFile() (string, error) {
	path, err := xdg.DataFile(defaultTokenFileSuffix)
	if err != nil {
		return "", fmt.Errorf("unable to access token file path: %w", err)
	}
	return path, nil
}

// NewBackend creates the backend selected by cfg. A keyring backend falls back
// to the token file when no OS keyring is reachable.
func NewBackend(cfg BackendConfig) (Backend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendKeyring, "":
		if IsKeyringAvailable() {
			return NewKeyringBackend(), nil
		}
		logger.Warn("OS keyring is not available, falling back to token file")
		fallthrough
	case BackendFile:
		path := cfg.FilePath
		if path == "" {
			var err error
			if path, err = DefaultTokenFile(); err != nil {
				return nil, err
			}
		}
		return NewFileBackend(path, logger), nil
	default:
		return nil, fmt.Errorf("unsupported token store type: %s", cfg.Type)
	}
}
