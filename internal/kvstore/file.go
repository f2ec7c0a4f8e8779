package kvstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps one file per key under a data directory. Writes replace the
// whole file, so concurrent writers to the same key lose data silently - the
// same last-writer-wins behavior as the browser storage it stands in for.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the data directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewFileStore: create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get implements the KV interface. A missing file means the key is unset.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("FileStore.Get: read %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements the KV interface.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path(key), []byte(value), 0o644); err != nil {
		return fmt.Errorf("FileStore.Set: write %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, fileName(key))
}

// fileName maps a key to a file name unique to that key. Sanitizing alone is
// lossy ("a/b" and "a_b" would fold together), so a hash of the raw key is
// appended to keep distinct keys on distinct files. The sanitized prefix
// stays for browsability.
func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return sanitizeKey(key) + "-" + hex.EncodeToString(sum[:8]) + ".json"
}

// sanitizeKey keeps keys usable as file names. Anything outside a small safe
// set becomes an underscore.
func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
