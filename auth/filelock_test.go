package auth

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")
	lockPath := target + ".lock"

	lock, err := acquireFileLock(target)
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v", err)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Errorf("lock file missing while held: %v", err)
	}

	if err := lock.release(); err != nil {
		t.Errorf("release() error = %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("lock file still present after release")
	}
}

func TestFileLock_SerializesHolders(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")

	const workers = 8
	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			lock, err := acquireFileLock(target)
			if err != nil {
				t.Errorf("worker %d: acquireFileLock() error = %v", id, err)
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			if err := lock.release(); err != nil {
				t.Errorf("worker %d: release() error = %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("two holders were inside the lock at the same time")
	}
}

func TestFileLock_BreaksStaleLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")
	lockPath := target + ".lock"

	if err := os.WriteFile(lockPath, []byte("99999"), 0o600); err != nil {
		t.Fatalf("failed to create stale lock: %v", err)
	}
	old := time.Now().Add(-2 * lockStaleAfter)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatalf("failed to age lock file: %v", err)
	}

	start := time.Now()
	lock, err := acquireFileLock(target)
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v, want stale lock broken", err)
	}
	defer lock.release()

	if elapsed := time.Since(start); elapsed >= lockRetryDelay {
		t.Errorf("breaking a stale lock took %v, want an immediate retry", elapsed)
	}

	if lock.lockFile == nil {
		t.Error("lock handle is nil")
	}
}

func TestFileLock_WaitsForActiveHolder(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tokens.json")

	first, err := acquireFileLock(target)
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		second, err := acquireFileLock(target)
		if err == nil {
			err = second.release()
		}
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while the first still held it")
	case <-time.After(3 * lockRetryDelay):
	}

	if err := first.release(); err != nil {
		t.Fatalf("release() error = %v", err)
	}

	select {
	case err := <-acquired:
		if err != nil {
			t.Errorf("second holder failed after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("second holder never acquired the lock")
	}
}

func TestFileLock_SecondReleaseReportsError(t *testing.T) {
	lock, err := acquireFileLock(filepath.Join(t.TempDir(), "tokens.json"))
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v", err)
	}
	if err := lock.release(); err != nil {
		t.Fatalf("first release() error = %v", err)
	}
	if err := lock.release(); err == nil {
		t.Error("second release() error = nil, want missing lock file error")
	}
}
