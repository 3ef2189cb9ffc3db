package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// fileContents is the on-disk layout: service -> account -> value.
// Values are []byte and therefore base64 encoded by encoding/json.
type fileContents struct {
	Items map[string]map[string][]byte `json:"items"`
}

// FileBackend stores items in a single JSON file readable only by the owner.
// Writes go through a lock file and an atomic rename.
type FileBackend struct {
	path   string
	logger *slog.Logger
}

// NewFileBackend creates a FileBackend writing to path.
func NewFileBackend(path string, logger *slog.Logger) *FileBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileBackend{path: path, logger: logger}
}

// Path returns the token file location.
func (f *FileBackend) Path() string {
	return f.path
}

// Find reads an item from the file.
func (f *FileBackend) Find(service, account string) ([]byte, error) {
	contents, err := f.load()
	if err != nil {
		return nil, err
	}
	data, ok := contents.Items[service][account]
	if !ok {
		return nil, ErrItemNotFound
	}
	return data, nil
}

// Insert adds a new item.
func (f *FileBackend) Insert(service, account string, data []byte) error {
	return f.modify(func(c *fileContents) error {
		if _, exists := c.Items[service][account]; exists {
			return ErrDuplicateItem
		}
		c.put(service, account, data)
		return nil
	})
}

// Update replaces an existing item.
func (f *FileBackend) Update(service, account string, data []byte) error {
	return f.modify(func(c *fileContents) error {
		if _, exists := c.Items[service][account]; !exists {
			return ErrItemNotFound
		}
		c.put(service, account, data)
		return nil
	})
}

func (c *fileContents) put(service, account string, data []byte) {
	if c.Items[service] == nil {
		c.Items[service] = make(map[string][]byte)
	}
	c.Items[service][account] = data
}

// load reads the token file. A missing file is an empty store.
func (f *FileBackend) load() (*fileContents, error) {
	contents := &fileContents{Items: make(map[string]map[string][]byte)}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return contents, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	if err := json.Unmarshal(data, contents); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if contents.Items == nil {
		contents.Items = make(map[string]map[string][]byte)
	}
	return contents, nil
}

// modify applies fn to the file contents while holding the file lock.
func (f *FileBackend) modify(fn func(*fileContents) error) error {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	lock, err := acquireFileLock(f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			f.logger.Warn("failed to release lock", "path", f.path, "err", releaseErr)
		}
	}()

	// Read inside the lock so concurrent writers do not drop each other's items
	contents, err := f.load()
	if err != nil {
		// A corrupt file is replaced rather than blocking logins forever
		f.logger.Warn("discarding unreadable token file", "path", f.path, "err", err)
		contents = &fileContents{Items: make(map[string]map[string][]byte)}
	}

	if err := fn(contents); err != nil {
		return err
	}

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return err
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
