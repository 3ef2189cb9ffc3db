package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestBackends_InsertUpdateSemantics(t *testing.T) {
	keyring.MockInit()

	backends := map[string]func(t *testing.T) Backend{
		"memory":  func(*testing.T) Backend { return NewMemoryBackend() },
		"file":    func(t *testing.T) Backend { return NewFileBackend(filepath.Join(t.TempDir(), "tokens.json"), nil) },
		"keyring": func(*testing.T) Backend { return NewKeyringBackend() },
	}

	for name, newBackend := range backends {
		t.Run(name, func(t *testing.T) {
			b := newBackend(t)
			account := "semantics-" + name

			if _, err := b.Find(DefaultService, account); !errors.Is(err, ErrItemNotFound) {
				t.Fatalf("Find() on empty error = %v, want ErrItemNotFound", err)
			}
			if err := b.Update(DefaultService, account, []byte("x")); !errors.Is(err, ErrItemNotFound) {
				t.Errorf("Update() of missing item error = %v, want ErrItemNotFound", err)
			}
			if err := b.Insert(DefaultService, account, []byte("one")); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if err := b.Insert(DefaultService, account, []byte("two")); !errors.Is(err, ErrDuplicateItem) {
				t.Errorf("second Insert() error = %v, want ErrDuplicateItem", err)
			}
			if err := b.Update(DefaultService, account, []byte("three")); err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			got, err := b.Find(DefaultService, account)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if string(got) != "three" {
				t.Errorf("Find() = %q, want three", got)
			}
		})
	}
}

func TestFileBackend_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	b := NewFileBackend(path, nil)

	if err := b.Insert(DefaultService, AccessTokenKey, []byte("secret")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestFileBackend_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	const writers = 10
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(id int) {
			defer wg.Done()
			// separate instances share nothing but the file, like separate processes
			b := NewFileBackend(path, nil)
			account := fmt.Sprintf("account-%d", id)
			if err := b.Insert(DefaultService, account, []byte(account)); err != nil {
				t.Errorf("writer %d: Insert() error = %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	b := NewFileBackend(path, nil)
	for i := 0; i < writers; i++ {
		account := fmt.Sprintf("account-%d", i)
		got, err := b.Find(DefaultService, account)
		if err != nil {
			t.Errorf("Find(%s) error = %v", account, err)
			continue
		}
		if string(got) != account {
			t.Errorf("Find(%s) = %q", account, got)
		}
	}
}

func TestFileBackend_CorruptFileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := NewStore(NewFileBackend(path, nil), nil)
	if err := store.Set(AccessTokenKey, "recovered"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, ok := store.Get(AccessTokenKey); !ok || got != "recovered" {
		t.Errorf("Get() = %q, %v; want recovered, true", got, ok)
	}
}

func TestParseBackendType(t *testing.T) {
	tests := []struct {
		in   string
		want BackendType
	}{
		{"", BackendKeyring},
		{"keyring", BackendKeyring},
		{"FILE", BackendFile},
		{" memory ", BackendMemory},
		{"vault", BackendKeyring},
	}
	for _, tt := range tests {
		if got := ParseBackendType(tt.in); got != tt.want {
			t.Errorf("ParseBackendType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewBackend(t *testing.T) {
	keyring.MockInit()

	mem, err := NewBackend(BackendConfig{Type: BackendMemory})
	if err != nil {
		t.Fatalf("NewBackend(memory) error = %v", err)
	}
	if _, ok := mem.(*MemoryBackend); !ok {
		t.Errorf("NewBackend(memory) = %T", mem)
	}

	path := filepath.Join(t.TempDir(), "tokens.json")
	file, err := NewBackend(BackendConfig{Type: BackendFile, FilePath: path})
	if err != nil {
		t.Fatalf("NewBackend(file) error = %v", err)
	}
	if fb, ok := file.(*FileBackend); !ok || fb.Path() != path {
		t.Errorf("NewBackend(file) = %#v", file)
	}

	kr, err := NewBackend(BackendConfig{Type: BackendKeyring})
	if err != nil {
		t.Fatalf("NewBackend(keyring) error = %v", err)
	}
	if _, ok := kr.(*KeyringBackend); !ok {
		t.Errorf("NewBackend(keyring) with mock keyring = %T", kr)
	}

	if _, err := NewBackend(BackendConfig{Type: "vault"}); err == nil {
		t.Error("NewBackend(vault) error = nil")
	}
}
