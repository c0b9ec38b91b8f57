// Package index implements the Task Index (§4.E): the aggregate
// metadata list across every task under a repo root, backed by
// task_history.json.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/store"
)

const historyFile = ".ai/history/task_history.json"

// SortBy selects the ordering search() applies (§4.E).
type SortBy string

const (
	SortNewest SortBy = "newest"
	SortOldest SortBy = "oldest"
	SortCost   SortBy = "cost"
)

const defaultSearchLimit = 100

// Index is a single process-wide instance per repo_root (§4.E):
// concurrent readers take a read lock, writers take an exclusive lock.
type Index struct {
	mu       sync.RWMutex
	repoRoot string
	tasks    []store.Metadata
	loaded   bool
}

// New constructs an Index scoped to repoRoot. Nothing is read from disk
// until Load is called.
func New(repoRoot string) *Index {
	return &Index{repoRoot: repoRoot}
}

func (ix *Index) path() string {
	return filepath.Join(ix.repoRoot, historyFile)
}

// Load parses task_history.json; a missing file is an empty list
// (§4.E).
func (ix *Index) Load() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.loadLocked()
}

func (ix *Index) loadLocked() error {
	raw, err := os.ReadFile(ix.path())
	if err != nil {
		if os.IsNotExist(err) {
			ix.tasks = []store.Metadata{}
			ix.loaded = true
			return nil
		}
		return errkind.New(errkind.IOError, "index.load", err)
	}
	if len(raw) == 0 {
		ix.tasks = []store.Metadata{}
		ix.loaded = true
		return nil
	}
	var tasks []store.Metadata
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return errkind.New(errkind.Corrupt, "index.load", err)
	}
	ix.tasks = tasks
	ix.loaded = true
	return nil
}

// ensureLoaded lazily loads the index on first use, taking the write
// lock only when a load is actually needed so concurrent readers don't
// contend once the index is warm.
func (ix *Index) ensureLoaded() error {
	ix.mu.RLock()
	loaded := ix.loaded
	ix.mu.RUnlock()
	if loaded {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.loaded {
		return nil
	}
	return ix.loadLocked()
}

// Seed carries the caller-supplied fields for a new or updated task row
// (§4.E upsert).
type Seed struct {
	Description string
	Provider    string
	Model       string
	RepoRoot    string
	TokensIn    *int64
	TokensOut   *int64
	TotalCost   *float64
	SizeBytes   *int64
}

// Upsert inserts a new row with a fresh task_id (created_at=now) when
// taskID is empty or absent, or refreshes last_updated and any provided
// fields when present. Returns the resulting record and its task_id
// (§4.E).
func (ix *Index) Upsert(taskID string, seed Seed, now float64) (store.Metadata, error) {
	if err := ix.ensureLoaded(); err != nil {
		return store.Metadata{}, err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if taskID != "" {
		for i := range ix.tasks {
			if ix.tasks[i].TaskID == taskID {
				applySeed(&ix.tasks[i], seed)
				ix.tasks[i].LastUpdated = now
				return ix.tasks[i], nil
			}
		}
	}

	rec := store.Metadata{
		TaskID:      uuid.NewString(),
		Description: seed.Description,
		CreatedAt:   now,
		LastUpdated: now,
		Provider:    seed.Provider,
		Model:       seed.Model,
		RepoRoot:    seed.RepoRoot,
	}
	applySeed(&rec, seed)
	ix.tasks = append(ix.tasks, rec)
	return rec, nil
}

func applySeed(rec *store.Metadata, seed Seed) {
	if seed.Description != "" {
		rec.Description = seed.Description
	}
	if seed.Provider != "" {
		rec.Provider = seed.Provider
	}
	if seed.Model != "" {
		rec.Model = seed.Model
	}
	if seed.RepoRoot != "" {
		rec.RepoRoot = seed.RepoRoot
	}
	if seed.TokensIn != nil {
		rec.TokensIn = *seed.TokensIn
	}
	if seed.TokensOut != nil {
		rec.TokensOut = *seed.TokensOut
	}
	if seed.TotalCost != nil {
		rec.TotalCost = *seed.TotalCost
	}
	if seed.SizeBytes != nil {
		rec.SizeBytes = *seed.SizeBytes
	}
}

// Get returns the row for taskID, if present.
func (ix *Index) Get(taskID string) (store.Metadata, bool, error) {
	if err := ix.ensureLoaded(); err != nil {
		return store.Metadata{}, false, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, t := range ix.tasks {
		if t.TaskID == taskID {
			return t, true, nil
		}
	}
	return store.Metadata{}, false, nil
}

// Search applies a case-insensitive substring match of query against
// description, an optional favorites filter, the requested sort order,
// and a result cap (default 100) (§4.E).
func (ix *Index) Search(query string, favoritesOnly bool, sortBy SortBy, limit int) ([]store.Metadata, error) {
	if err := ix.ensureLoaded(); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var matched []store.Metadata
	q := strings.ToLower(query)
	for _, t := range ix.tasks {
		if query != "" && !strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		if favoritesOnly && !t.IsFavorited {
			continue
		}
		matched = append(matched, t)
	}

	switch sortBy {
	case SortOldest:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt < matched[j].CreatedAt })
	case SortCost:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].TotalCost > matched[j].TotalCost })
	default:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].LastUpdated > matched[j].LastUpdated })
	}

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ToggleFavorite flips is_favorited for taskID (§4.E).
func (ix *Index) ToggleFavorite(taskID string) (bool, error) {
	if err := ix.ensureLoaded(); err != nil {
		return false, err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i := range ix.tasks {
		if ix.tasks[i].TaskID == taskID {
			ix.tasks[i].IsFavorited = !ix.tasks[i].IsFavorited
			return ix.tasks[i].IsFavorited, nil
		}
	}
	return false, errkind.New(errkind.NotFound, "index.toggle_favorite", errTaskNotFound(taskID))
}

// Delete removes the index row for taskID (§4.E). Missing row is a
// NotFound error so callers pairing Index.Delete with Store.Delete can
// detect partial state.
func (ix *Index) Delete(taskID string) error {
	if err := ix.ensureLoaded(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, t := range ix.tasks {
		if t.TaskID == taskID {
			ix.tasks = append(ix.tasks[:i], ix.tasks[i+1:]...)
			return nil
		}
	}
	return errkind.New(errkind.NotFound, "index.delete", errTaskNotFound(taskID))
}

// Save atomically replaces task_history.json with the current in-memory
// list (§4.E).
func (ix *Index) Save() error {
	if err := ix.ensureLoaded(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	dir := filepath.Dir(ix.path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errkind.New(errkind.IOError, "index.save", err)
	}

	data, err := json.MarshalIndent(ix.tasks, "", "  ")
	if err != nil {
		return errkind.New(errkind.IOError, "index.save", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errkind.New(errkind.IOError, "index.save", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errkind.New(errkind.IOError, "index.save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errkind.New(errkind.IOError, "index.save", err)
	}
	if err := tmp.Close(); err != nil {
		return errkind.New(errkind.IOError, "index.save", err)
	}
	if err := os.Rename(tmpPath, ix.path()); err != nil {
		return errkind.New(errkind.IOError, "index.save", err)
	}
	cleanup = false
	return nil
}

// Stats totals across the current list (§4.E).
type Stats struct {
	TotalCount int64
	TotalTokens int64
	TotalCost  float64
}

func (ix *Index) Stats() (Stats, error) {
	if err := ix.ensureLoaded(); err != nil {
		return Stats{}, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var s Stats
	s.TotalCount = int64(len(ix.tasks))
	for _, t := range ix.tasks {
		s.TotalTokens += t.TokensIn + t.TokensOut
		s.TotalCost += t.TotalCost
	}
	return s, nil
}

type taskNotFoundErr string

func (e taskNotFoundErr) Error() string { return "task not found: " + string(e) }

func errTaskNotFound(taskID string) error { return taskNotFoundErr(taskID) }
