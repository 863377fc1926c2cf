// Package securestore persists a small set of named secret strings across
// process restarts. The file backend keeps everything in a single 0600 JSON
// file written atomically under a lock file, so concurrent processes never
// observe a half-written slot set.
package securestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrStorage wraps every failure of the underlying persistence; callers
// match it with errors.Is without caring whether the backend is a file
// or something else.
var ErrStorage = errors.New("secure storage failure")

// Store is the secure key/value capability: named string slots that
// survive restarts. Put merges all given slots in one atomic write;
// Delete of an absent slot is not an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Put(values map[string]string) error
	Delete(keys ...string) error
}

// FileStore keeps slots in a JSON object on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore backed by the file at path. The file
// is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(key string) (string, bool, error) {
	slots, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := slots[key]
	return v, ok, nil
}

func (s *FileStore) Put(values map[string]string) error {
	lock, err := acquireFileLock(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer lock.release()

	slots, err := s.read()
	if err != nil {
		return err
	}
	for k, v := range values {
		slots[k] = v
	}
	return s.write(slots)
}

func (s *FileStore) Delete(keys ...string) error {
	lock, err := acquireFileLock(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer lock.release()

	slots, err := s.read()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(slots, k)
	}
	return s.write(slots)
}

// read loads the slot file. A missing file is an empty slot set, not an
// error; a corrupt file is treated the same so a bad write can never
// brick the store.
func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	var slots map[string]string
	if err := json.Unmarshal(data, &slots); err != nil || slots == nil {
		return map[string]string{}, nil
	}
	return slots, nil
}

// write persists the slot set with the temp-file + rename pattern so a
// crash mid-write leaves the previous file intact.
func (s *FileStore) write(slots map[string]string) error {
	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// MemStore is an in-memory Store used in tests and anywhere persistence
// across restarts is not required.
type MemStore struct {
	mu    sync.Mutex
	slots map[string]string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{slots: map[string]string{}}
}

func (s *MemStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.slots[key]
	return v, ok, nil
}

func (s *MemStore) Put(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.slots[k] = v
	}
	return nil
}

func (s *MemStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.slots, k)
	}
	return nil
}
