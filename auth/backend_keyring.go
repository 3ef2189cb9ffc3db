package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringBackend stores items in the OS keyring (Keychain, Secret Service,
// Windows Credential Manager).
type KeyringBackend struct{}

// NewKeyringBackend creates a KeyringBackend.
func NewKeyringBackend() *KeyringBackend {
	return &KeyringBackend{}
}

// Find reads an item from the keyring.
func (*KeyringBackend) Find(service, account string) ([]byte, error) {
	value, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("keyring get: %w", err)
	}
	return []byte(value), nil
}

// Insert adds an item. keyring.Set is an upsert, so existence is checked first.
func (k *KeyringBackend) Insert(service, account string, data []byte) error {
	if _, err := k.Find(service, account); err == nil {
		return ErrDuplicateItem
	} else if !errors.Is(err, ErrItemNotFound) {
		return err
	}
	if err := keyring.Set(service, account, string(data)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// Update replaces an existing item.
func (k *KeyringBackend) Update(service, account string, data []byte) error {
	if _, err := k.Find(service, account); err != nil {
		return err
	}
	if err := keyring.Set(service, account, string(data)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// IsKeyringAvailable tests if the OS keyring is available by setting and
// deleting a probe value.
func IsKeyringAvailable() bool {
	const probeKey = "update-cli-keyring-probe"

	if err := keyring.Set(DefaultService, probeKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(DefaultService, probeKey)
	return true
}
