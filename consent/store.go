// Package consent remembers which callers a human has allowed to use each bot endpoint.
//
// Records live in two tiers: a process-wide memory tier keyed by the record's storage path, and a
// JSON file at that path. The memory tier is authoritative for the life of the process; the file
// is read only when the memory tier has no entry, which after a restart is always.
package consent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// FilePrefix prefixes every consent file name under the storage folder.
const FilePrefix = "zhibot."

// StoragePath returns the consent file for the endpoint identified by key inside folder.
func StoragePath(folder, key string) string {
	return filepath.Join(folder, FilePrefix+key)
}

type Store struct {
	memory *cache.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// paths whose file exists but could not be read; never written back this process
	readOnly map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		memory:   cache.New(cache.NoExpiration, 0),
		locks:    make(map[string]*sync.Mutex),
		readOnly: make(map[string]struct{}),
	}
}

func (s *Store) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// IsApproved reports whether id was approved for the record at path.
func (s *Store) IsApproved(path, id string) bool {
	if id == "" {
		return false
	}
	unlock := s.lock(path)
	defer unlock()

	_, ok := s.load(path)[id]
	return ok
}

// Approved lists the approved ids for the record at path, sorted.
func (s *Store) Approved(path string) []string {
	unlock := s.lock(path)
	defer unlock()

	return sortedIDs(s.load(path))
}

// Approve adds id to the record at path and persists it. The memory tier is updated even when
// the file write fails; the returned error then wraps ErrPersistence.
func (s *Store) Approve(path, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", zerrors.ErrInvalidRequest)
	}
	unlock := s.lock(path)
	defer unlock()

	ids := s.load(path)
	if _, ok := ids[id]; ok {
		return nil
	}
	next := make(map[string]struct{}, len(ids)+1)
	for k := range ids {
		next[k] = struct{}{}
	}
	next[id] = struct{}{}
	return s.save(path, next)
}

// Revoke removes id from the record at path. It reports whether the id was present.
func (s *Store) Revoke(path, id string) (bool, error) {
	unlock := s.lock(path)
	defer unlock()

	ids := s.load(path)
	if _, ok := ids[id]; !ok {
		return false, nil
	}
	next := make(map[string]struct{}, len(ids))
	for k := range ids {
		if k != id {
			next[k] = struct{}{}
		}
	}
	return true, s.save(path, next)
}

// Clear empties the record at path.
func (s *Store) Clear(path string) error {
	unlock := s.lock(path)
	defer unlock()

	return s.save(path, map[string]struct{}{})
}

// load must be called with the path lock held. The returned set must not be mutated.
func (s *Store) load(path string) map[string]struct{} {
	if v, ok := s.memory.Get(path); ok {
		return v.(map[string]struct{})
	}

	ids := make(map[string]struct{})
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		log.Error().Err(err).Str("path", path).Msg("consent: read failed, keeping approvals in memory only")
		s.mu.Lock()
		s.readOnly[path] = struct{}{}
		s.mu.Unlock()
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("consent: corrupt file, starting empty")
		} else {
			for _, id := range list {
				ids[id] = struct{}{}
			}
		}
	}
	s.memory.Set(path, ids, cache.NoExpiration)
	return ids
}

// save must be called with the path lock held. A file that exists but could not be read is left
// untouched so the approvals it holds survive.
func (s *Store) save(path string, ids map[string]struct{}) error {
	s.memory.Set(path, ids, cache.NoExpiration)

	s.mu.Lock()
	_, readOnly := s.readOnly[path]
	s.mu.Unlock()
	if readOnly {
		return zerrors.Wrapf(zerrors.ErrPersistence, "%s could not be read, not overwriting it", path)
	}

	if err := writeFile(path, sortedIDs(ids)); err != nil {
		log.Error().Err(err).Str("path", path).Msg("consent: persist failed")
		return zerrors.Wrapf(zerrors.ErrPersistence, "write %s: %v", path, err)
	}
	return nil
}

func writeFile(path string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func sortedIDs(ids map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
