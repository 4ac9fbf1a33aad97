// Package kv is a small namespaced key-value store backed by flat files.
// It stands in for the device's persistent flash storage: each namespace
// is a directory, each key a file, and writes go through a temp file plus
// rename so a power cut never leaves a half-written record behind.
package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MePride/pin/internal/errs"
)

// Store is the persistence surface the canvas and image layers run on.
type Store interface {
	// Put writes value under key in namespace, creating or replacing it.
	Put(namespace, key string, value []byte) error
	// Get reads the value for key. Returns errs.ErrNotFound if absent.
	Get(namespace, key string) ([]byte, error)
	// Erase removes key. Erasing an absent key returns errs.ErrNotFound.
	Erase(namespace, key string) error
	// Keys lists the keys in namespace, sorted. An absent namespace is
	// an empty list, not an error.
	Keys(namespace string) ([]string, error)
}

// FileStore is a Store rooted at a directory.
type FileStore struct {
	root string
}

// OpenFile opens (creating if needed) a file-backed store rooted at dir.
func OpenFile(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("kv: empty root dir: %w", errs.ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// validName rejects names that would escape the store directory or collide
// with the temp-file suffix used during atomic writes.
func validName(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	if strings.ContainsAny(s, "/\\") || s == "." || s == ".." {
		return false
	}
	return !strings.HasSuffix(s, ".tmp")
}

func (f *FileStore) path(namespace, key string) (string, error) {
	if !validName(namespace) || !validName(key) {
		return "", fmt.Errorf("kv: bad namespace/key %q/%q: %w", namespace, key, errs.ErrInvalidArgument)
	}
	return filepath.Join(f.root, namespace, key), nil
}

func (f *FileStore) Put(namespace, key string, value []byte) error {
	p, err := f.path(namespace, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("kv: create namespace: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("kv: write %s/%s: %w", namespace, key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("kv: commit %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (f *FileStore) Get(namespace, key string) ([]byte, error) {
	p, err := f.path(namespace, key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("kv: %s/%s: %w", namespace, key, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("kv: read %s/%s: %w", namespace, key, err)
	}
	return b, nil
}

func (f *FileStore) Erase(namespace, key string) error {
	p, err := f.path(namespace, key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if os.IsNotExist(err) {
		return fmt.Errorf("kv: %s/%s: %w", namespace, key, errs.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("kv: erase %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (f *FileStore) Keys(namespace string) ([]string, error) {
	if !validName(namespace) {
		return nil, fmt.Errorf("kv: bad namespace %q: %w", namespace, errs.ErrInvalidArgument)
	}
	entries, err := os.ReadDir(filepath.Join(f.root, namespace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv: list %s: %w", namespace, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}
