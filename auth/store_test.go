package auth

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// racingBackend reports a missing item on the first Find but already holds it,
// like a second process inserting between the existence check and the insert.
type racingBackend struct {
	*MemoryBackend
	hideOnce sync.Once
	updates  int
}

func (r *racingBackend) Find(service, account string) ([]byte, error) {
	hidden := false
	r.hideOnce.Do(func() { hidden = true })
	if hidden {
		return nil, ErrItemNotFound
	}
	return r.MemoryBackend.Find(service, account)
}

func (r *racingBackend) Update(service, account string, data []byte) error {
	r.updates++
	return r.MemoryBackend.Update(service, account, data)
}

type brokenBackend struct{ err error }

func (b brokenBackend) Find(string, string) ([]byte, error) { return nil, b.err }
func (b brokenBackend) Insert(string, string, []byte) error { return b.err }
func (b brokenBackend) Update(string, string, []byte) error { return b.err }

func TestStore_SetThenGet(t *testing.T) {
	store := NewStore(NewMemoryBackend(), nil)

	if _, ok := store.Get(AccessTokenKey); ok {
		t.Fatal("Get() on empty store ok = true")
	}

	for _, value := range []string{"first", "second"} {
		if err := store.Set(AccessTokenKey, value); err != nil {
			t.Fatalf("Set(%q) error = %v", value, err)
		}
		got, ok := store.Get(AccessTokenKey)
		if !ok || got != value {
			t.Errorf("Get() = %q, %v; want %q, true", got, ok, value)
		}
	}
}

func TestStore_KeysAreIndependent(t *testing.T) {
	store := NewStore(NewMemoryBackend(), nil)

	if err := store.Set(AccessTokenKey, "access"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(RefreshTokenKey, "refresh"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if got, _ := store.Get(AccessTokenKey); got != "access" {
		t.Errorf("access token = %q", got)
	}
	if got, _ := store.Get(RefreshTokenKey); got != "refresh" {
		t.Errorf("refresh token = %q", got)
	}
}

func TestStore_DuplicateInsertBecomesUpdate(t *testing.T) {
	mem := NewMemoryBackend()
	if err := mem.Insert(DefaultService, AccessTokenKey, []byte("stale")); err != nil {
		t.Fatalf("seed Insert() error = %v", err)
	}
	backend := &racingBackend{MemoryBackend: mem}
	store := NewStore(backend, nil)

	if err := store.Set(AccessTokenKey, "fresh"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if backend.updates != 1 {
		t.Errorf("updates = %d, want 1", backend.updates)
	}
	if got, _ := store.Get(AccessTokenKey); got != "fresh" {
		t.Errorf("Get() = %q, want fresh", got)
	}
}

func TestStore_BackendFailure(t *testing.T) {
	cause := errors.New("keychain locked")
	store := NewStore(brokenBackend{err: cause}, nil)

	err := store.Set(AccessTokenKey, "value")
	if !errors.Is(err, ErrStorage) {
		t.Errorf("Set() error = %v, want ErrStorage", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Set() error = %v, want cause preserved", err)
	}

	if _, ok := store.Get(AccessTokenKey); ok {
		t.Error("Get() ok = true on a failing backend")
	}
}

func TestStore_ConcurrentSet(t *testing.T) {
	store := NewStore(NewMemoryBackend(), nil)

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(id int) {
			defer wg.Done()
			if err := store.Set(AccessTokenKey, fmt.Sprintf("token-%d", id)); err != nil {
				t.Errorf("writer %d: Set() error = %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if _, ok := store.Get(AccessTokenKey); !ok {
		t.Error("no value stored after concurrent writes")
	}
}
