package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/natefinch/atomic"
)

// FileKV is a KV kept in a single JSON file. Every Set rewrites the file
// atomically, so a crash leaves either the old or the new contents.
type FileKV struct {
	mu   sync.Mutex
	path string
	data map[string][]byte
}

var _ KV = (*FileKV)(nil)

// OpenFileKV loads path, creating its directory. A missing file is an empty store.
func OpenFileKV(path string) (*FileKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	kv := &FileKV{path: path, data: map[string][]byte{}}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return kv, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(b, &kv.data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return kv, nil
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	f.data[key] = bytes.Clone(value)

	b, err := json.MarshalIndent(f.data, "", "  ")
	if err == nil {
		err = atomic.WriteFile(f.path, bytes.NewReader(b))
	}
	if err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// MemKV is an in-memory KV.
type MemKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ KV = (*MemKV)(nil)

func NewMemKV() *MemKV { return &MemKV{data: map[string][]byte{}} }

func (m *MemKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *MemKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = bytes.Clone(value)
	return nil
}
