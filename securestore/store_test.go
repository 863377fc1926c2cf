package securestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileStore_GetMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "slots.json"))

	_, ok, err := s.Get("access_token")
	if err != nil {
		t.Fatalf("Get on missing file: %v", err)
	}
	if ok {
		t.Errorf("Expected absent slot, got a value")
	}
}

func TestFileStore_PutMergesSlots(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "slots.json"))

	if err := s.Put(map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("First put: %v", err)
	}
	if err := s.Put(map[string]string{"b": "3"}); err != nil {
		t.Fatalf("Second put: %v", err)
	}

	for key, want := range map[string]string{"a": "1", "b": "3"} {
		got, ok, err := s.Get(key)
		if err != nil || !ok {
			t.Fatalf("Get(%q): ok=%v err=%v", key, ok, err)
		}
		if got != want {
			t.Errorf("Slot %q = %q, want %q", key, got, want)
		}
	}
}

func TestFileStore_DeleteAbsentSlot(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "slots.json"))

	if err := s.Delete("never-written"); err != nil {
		t.Errorf("Delete of absent slot should not fail: %v", err)
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.json")
	s := NewFileStore(path)

	if err := s.Put(map[string]string{"secret": "s3cret"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Slot file permissions = %o, want 600", perm)
	}
}

func TestFileStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("Seed corrupt file: %v", err)
	}

	s := NewFileStore(path)
	_, ok, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get on corrupt file: %v", err)
	}
	if ok {
		t.Errorf("Expected absent slot from corrupt file")
	}

	// A write must recover the file.
	if err := s.Put(map[string]string{"a": "1"}); err != nil {
		t.Fatalf("Put over corrupt file: %v", err)
	}
	got, ok, _ := s.Get("a")
	if !ok || got != "1" {
		t.Errorf("Slot after recovery = %q (ok=%v), want %q", got, ok, "1")
	}
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.json")
	s := NewFileStore(path)

	const goroutines = 10
	var wg sync.WaitGroup

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("slot-%d", id)
			if err := s.Put(map[string]string{key: fmt.Sprintf("value-%d", id)}); err != nil {
				t.Errorf("Goroutine %d: put failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	// Every writer's slot must survive: writes merge, they don't clobber.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read slot file: %v", err)
	}
	var slots map[string]string
	if err := json.Unmarshal(data, &slots); err != nil {
		t.Fatalf("Parse slot file: %v", err)
	}
	if len(slots) != goroutines {
		t.Errorf("Expected %d slots, got %d", goroutines, len(slots))
	}

	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after all writes completed")
	}
}
