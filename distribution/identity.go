package distribution

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Identity identifies the running build to the backend.
type Identity interface {
	// BinaryIdentifier is unique per compiled binary.
	BinaryIdentifier() (string, error)
	// AppIdentifier is stable across builds of the same app.
	AppIdentifier() (string, error)
}

// StaticIdentity returns fixed values.
type StaticIdentity struct {
	Binary string
	App    string
}

func (s StaticIdentity) BinaryIdentifier() (string, error) {
	if s.Binary == "" {
		return "", errors.New("binary identifier not set")
	}
	return s.Binary, nil
}

func (s StaticIdentity) AppIdentifier() (string, error) {
	if s.App == "" {
		return "", errors.New("app identifier not set")
	}
	return s.App, nil
}

// binaryNamespace scopes the name based UUIDs derived from executables.
var binaryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://api.emergetools.com/distribution/binary"))

// ExecutableIdentity derives the identity of the current process. The binary
// identifier is a SHA-1 name based UUID of the executable's contents and the
// app identifier is the main module path from the embedded build info.
type ExecutableIdentity struct {
	// Path overrides the executable location. Empty means os.Executable.
	Path string

	once   sync.Once
	binary string
	err    error
}

func (e *ExecutableIdentity) BinaryIdentifier() (string, error) {
	e.once.Do(func() {
		e.binary, e.err = e.hashExecutable()
	})
	return e.binary, e.err
}

func (e *ExecutableIdentity) hashExecutable() (string, error) {
	path := e.Path
	if path == "" {
		var err error
		if path, err = os.Executable(); err != nil {
			return "", fmt.Errorf("failed to locate executable: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read executable: %w", err)
	}
	return BinaryIdentifierFor(data), nil
}

func (e *ExecutableIdentity) AppIdentifier() (string, error) {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Path != "" {
			return info.Main.Path, nil
		}
		if info.Path != "" {
			return info.Path, nil
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to determine app identifier: %w", err)
	}
	return strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe)), nil
}

// BinaryIdentifierFor returns the uppercase identifier of a binary image.
func BinaryIdentifierFor(image []byte) string {
	return strings.ToUpper(uuid.NewSHA1(binaryNamespace, image).String())
}

func resolveIdentity(identity Identity, binaryOverride, appOverride string) (binary, app string, err error) {
	binary, app = binaryOverride, appOverride
	if binary != "" && app != "" {
		return binary, app, nil
	}
	if identity == nil {
		return "", "", errors.New("no identity configured and no identifier overrides given")
	}
	if binary == "" {
		if binary, err = identity.BinaryIdentifier(); err != nil {
			return "", "", fmt.Errorf("binary identifier: %w", err)
		}
	}
	if app == "" {
		if app, err = identity.AppIdentifier(); err != nil {
			return "", "", fmt.Errorf("app identifier: %w", err)
		}
	}
	return binary, app, nil
}
