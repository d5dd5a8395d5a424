// Package store persists the single credential slot used to pre-fill the login
// prompt. The slot is a plain key-value pair; backends are selected from the
// environment the same way for every entry point.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// CredentialSlotKey is the slot holding the last confirmed web session credential.
const CredentialSlotKey = "cursor_session_token"

const slotFileName = "slots.json"

// corruptSuffix is appended to an unreadable slot document before it is replaced.
const corruptSuffix = ".corrupt"

// SlotStore reads and writes string slots.
type SlotStore interface {
	// Get returns the slot value, or "" when the slot was never written.
	Get(ctx context.Context, key string) (string, error)
	// Set overwrites the slot value.
	Set(ctx context.Context, key, value string) error
}

// FileSlotStore keeps slots in a single JSON document on disk.
type FileSlotStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSlotStore returns a store backed by <dir>/slots.json.
func NewFileSlotStore(dir string) *FileSlotStore {
	return &FileSlotStore{path: filepath.Join(dir, slotFileName)}
}

// Path returns the backing document path.
func (s *FileSlotStore) Path() string {
	return s.path
}

// Get implements SlotStore.
func (s *FileSlotStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, _, err := s.read()
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(data, slotPath(key)).String(), nil
}

// Set implements SlotStore.
func (s *FileSlotStore) Set(_ context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("slot store: key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, corrupt, err := s.read()
	if err != nil {
		return err
	}
	if corrupt {
		backup := s.path + corruptSuffix
		if err = os.Rename(s.path, backup); err != nil {
			return fmt.Errorf("slot store: move aside corrupt document: %w", err)
		}
		log.Warnf("slot store: %s is not valid JSON, moved to %s", s.path, backup)
	}
	updated, err := sjson.SetBytes(data, slotPath(key), value)
	if err != nil {
		return fmt.Errorf("slot store: update document: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("slot store: create dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, updated, 0o600); err != nil {
		return fmt.Errorf("slot store: write temp file: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("slot store: replace document: %w", err)
	}
	return nil
}

// read returns the slot document. An unparsable document reads as empty and
// is reported as corrupt so Set can keep a copy before replacing it.
func (s *FileSlotStore) read() ([]byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []byte("{}"), false, nil
		}
		return nil, false, fmt.Errorf("slot store: read document: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []byte("{}"), false, nil
	}
	if !gjson.ValidBytes(data) {
		log.Warnf("slot store: ignoring unparsable document %s", s.path)
		return []byte("{}"), true, nil
	}
	return data, false, nil
}

// slotPath escapes gjson/sjson path metacharacters so a key is always one field.
func slotPath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MemorySlotStore is an in-process SlotStore.
type MemorySlotStore struct {
	mu    sync.RWMutex
	slots map[string]string
}

// NewMemorySlotStore returns an empty in-memory store.
func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{slots: make(map[string]string)}
}

// Get implements SlotStore.
func (s *MemorySlotStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[key], nil
}

// Set implements SlotStore.
func (s *MemorySlotStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.slots[key] = value
	s.mu.Unlock()
	return nil
}
