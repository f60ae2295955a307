package session

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileLock_AcquireAndRelease(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	lock, err := acquireFileLock(sessionFile)
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v", err)
	}

	lockPath := sessionFile + ".lock"
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Errorf("lock file was not created")
	}

	if err := lock.release(); err != nil {
		t.Errorf("release() error = %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("lock file still exists after release")
	}
}

func TestFileLock_SerializesConcurrentHolders(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	const goroutines = 8
	const iterations = 3

	var (
		held      atomic.Int32
		completed atomic.Int32
		wg        sync.WaitGroup
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < iterations; j++ {
				lock, err := acquireFileLock(sessionFile)
				if err != nil {
					t.Errorf("Goroutine %d: acquireFileLock() error = %v", id, err)
					return
				}

				// Only one holder at a time.
				if n := held.Add(1); n != 1 {
					t.Errorf("Goroutine %d: %d simultaneous lock holders", id, n)
				}
				time.Sleep(5 * time.Millisecond)
				held.Add(-1)
				completed.Add(1)

				if err := lock.release(); err != nil {
					t.Errorf("Goroutine %d: release() error = %v", id, err)
					return
				}
			}
		}(i)
	}

	wg.Wait()

	if want := int32(goroutines * iterations); completed.Load() != want {
		t.Errorf("completed = %d, want %d", completed.Load(), want)
	}
	if _, err := os.Stat(sessionFile + ".lock"); !os.IsNotExist(err) {
		t.Errorf("lock file still exists after all goroutines finished")
	}
}

func TestFileLock_ReclaimsStaleLock(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	lockPath := sessionFile + ".lock"

	stale, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("create stale lock: %v", err)
	}
	stale.Close()

	// Backdate past the staleness cutoff.
	staleTime := time.Now().Add(-lockStaleAfter - 5*time.Second)
	if err := os.Chtimes(lockPath, staleTime, staleTime); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	lock, err := acquireFileLock(sessionFile)
	if err != nil {
		t.Fatalf("acquireFileLock() with stale lock present error = %v", err)
	}
	defer lock.release()

	if lock.lockFile == nil {
		t.Errorf("lock file handle is nil")
	}
}

func TestFileLock_WaitsForActiveHolder(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	first, err := acquireFileLock(sessionFile)
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		second, err := acquireFileLock(sessionFile)
		if err != nil {
			done <- err
			return
		}
		second.release()
		done <- nil
	}()

	// The second acquirer must still be waiting while the first holds on.
	time.Sleep(200 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("second lock acquired while first was still held")
	default:
	}

	first.release()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("second acquire after release error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("second acquire timed out after release")
	}
}

func TestFileLock_TimesOutOnFreshLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timeout test in short mode")
	}

	sessionFile := filepath.Join(t.TempDir(), "session.json")
	lockPath := sessionFile + ".lock"

	fresh, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("create fresh lock: %v", err)
	}
	fresh.Close()

	start := time.Now()
	_, err = acquireFileLock(sessionFile)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error, lock was acquired")
	}

	// 50 retries at 100ms each lands around 5 seconds.
	if elapsed < 4*time.Second || elapsed > 7*time.Second {
		t.Errorf("timed out after %v, want ~5s", elapsed)
	}

	os.Remove(lockPath)
}

func TestFileLock_ReleaseTwice(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	lock, err := acquireFileLock(sessionFile)
	if err != nil {
		t.Fatalf("acquireFileLock() error = %v", err)
	}

	if err := lock.release(); err != nil {
		t.Errorf("first release() error = %v", err)
	}
	// A second release must not panic; the lock file is already gone.
	if err := lock.release(); err == nil {
		t.Logf("second release() returned nil; removal error expected")
	}
}
