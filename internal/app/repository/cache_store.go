package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quicktrends/couponfunnel/internal/app/model"
)

var (
	// ErrCacheMiss signals that no entry exists for the requested key.
	ErrCacheMiss = errors.New("cache entry not found")
)

// CacheStore holds memoized recommendation results keyed by request
// signature. Implementations must survive concurrent read-modify-write:
// double computation of the same key is fine, a corrupted store is not.
type CacheStore interface {
	Get(ctx context.Context, key string) (*model.RecommendationEntry, error)
	Set(ctx context.Context, key string, entry *model.RecommendationEntry) error
}

type fileCacheStore struct {
	path string
	mu   sync.Mutex
}

// NewFileCacheStore returns a CacheStore persisting all entries in a single
// JSON document. Writes go to a temp file first and are renamed into place
// so a concurrent reader never observes a torn document.
func NewFileCacheStore(path string) CacheStore {
	return &fileCacheStore{path: path}
}

func (s *fileCacheStore) Get(_ context.Context, key string) (*model.RecommendationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	entry, ok := entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

func (s *fileCacheStore) Set(_ context.Context, key string, entry *model.RecommendationEntry) error {
	if entry == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		// A corrupt store is rebuilt rather than blocking new writes.
		entries = nil
	}
	if entries == nil {
		entries = make(map[string]model.RecommendationEntry)
	}
	entries[key] = *entry

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cache-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache store: %w", err)
	}
	return nil
}

func (s *fileCacheStore) load() (map[string]model.RecommendationEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache store: %w", err)
	}

	var entries map[string]model.RecommendationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache store: %w", err)
	}
	return entries, nil
}
