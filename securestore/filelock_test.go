package securestore

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	slotFile := filepath.Join(t.TempDir(), "slots.json")

	lock, err := acquireFileLock(slotFile)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	lockPath := slotFile + ".lock"
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Errorf("Lock file was not created")
	}

	if err := lock.release(); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file was not removed after release")
	}
}

func TestFileLock_ConcurrentAccess(t *testing.T) {
	slotFile := filepath.Join(t.TempDir(), "slots.json")

	const goroutines = 10
	const iterations = 5

	var (
		successCount atomic.Int32
		wg           sync.WaitGroup
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < iterations; j++ {
				lock, err := acquireFileLock(slotFile)
				if err != nil {
					t.Errorf("Goroutine %d iteration %d: failed to acquire lock: %v", id, j, err)
					return
				}

				time.Sleep(10 * time.Millisecond)
				successCount.Add(1)

				if err := lock.release(); err != nil {
					t.Errorf("Goroutine %d iteration %d: failed to release lock: %v", id, j, err)
					return
				}
			}
		}(i)
	}

	wg.Wait()

	if got, want := successCount.Load(), int32(goroutines*iterations); got != want {
		t.Errorf("Expected %d successful acquisitions, got %d", want, got)
	}

	if _, err := os.Stat(slotFile + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after all goroutines finished")
	}
}

func TestFileLock_ReapsStaleLock(t *testing.T) {
	slotFile := filepath.Join(t.TempDir(), "slots.json")
	lockPath := slotFile + ".lock"

	stale, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("Failed to create stale lock: %v", err)
	}
	stale.Close()

	// Older than the stale threshold.
	staleTime := time.Now().Add(-lockStaleAge - 5*time.Second)
	if err := os.Chtimes(lockPath, staleTime, staleTime); err != nil {
		t.Fatalf("Failed to age lock file: %v", err)
	}

	lock, err := acquireFileLock(slotFile)
	if err != nil {
		t.Fatalf("Failed to acquire lock past a stale one: %v", err)
	}
	defer lock.release()

	if lock.f == nil {
		t.Errorf("Lock file handle is nil")
	}
}

func TestFileLock_BlockedByActiveLock(t *testing.T) {
	slotFile := filepath.Join(t.TempDir(), "slots.json")

	lock1, err := acquireFileLock(slotFile)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		lock2, err := acquireFileLock(slotFile)
		if err != nil {
			errChan <- err
			return
		}
		lock2.release()
		errChan <- nil
	}()

	time.Sleep(200 * time.Millisecond)

	select {
	case <-errChan:
		t.Errorf("Second lock acquired while first lock was active")
	default:
	}

	lock1.release()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Second lock failed after first was released: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("Second lock timed out after first was released")
	}
}

func TestFileLock_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping timeout test in short mode")
	}

	slotFile := filepath.Join(t.TempDir(), "slots.json")
	lockPath := slotFile + ".lock"

	held, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("Failed to create lock: %v", err)
	}
	held.Close()

	start := time.Now()
	_, err = acquireFileLock(slotFile)
	duration := time.Since(start)

	if err == nil {
		t.Fatalf("Expected timeout error, but lock was acquired")
	}

	// 50 retries at 100ms should land near 5 seconds.
	if duration < 4*time.Second || duration > 7*time.Second {
		t.Errorf("Expected timeout around 5 seconds, got %v", duration)
	}

	os.Remove(lockPath)
}
