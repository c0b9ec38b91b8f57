package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/relayagent/agentd/internal/errkind"
)

const (
	apiHistoryFile = "api_conversation_history.json"
	uiMessagesFile = "ui_messages.json"
	metadataFile   = "task_metadata.json"
	tasksDirName   = ".ai/tasks"
)

// Store is the Conversation Store (§4.D): per-task message log and
// metadata on disk, guarded by a per-task mutex so concurrent writers
// to the same task serialize.
type Store struct {
	mu    sync.Mutex // guards the locks map itself
	locks map[string]*sync.Mutex

	mem sync.Mutex // guards pending, the in-memory append buffer
	pending map[string][]Message
}

// New constructs a Store. repo_root is supplied per call rather than
// baked in, since one process may serve tasks across several repos.
func New() *Store {
	return &Store{
		locks:   make(map[string]*sync.Mutex),
		pending: make(map[string][]Message),
	}
}

func (s *Store) lockFor(taskID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[taskID] = l
	}
	return l
}

func taskDir(repoRoot, taskID string) string {
	return filepath.Join(repoRoot, tasksDirName, taskID)
}

// Load reads api_conversation_history.json for task_id. A missing file
// is an empty history, not an error; corrupt JSON is Corrupt and the
// file is left untouched (§4.D).
func (s *Store) Load(repoRoot, taskID string) ([]Message, error) {
	lock := s.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(taskDir(repoRoot, taskID), apiHistoryFile)
	return loadMessages(path)
}

func loadMessages(path string) ([]Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Message{}, nil
		}
		return nil, errkind.New(errkind.IOError, "store.load", err)
	}
	if len(raw) == 0 {
		return []Message{}, nil
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, errkind.New(errkind.Corrupt, "store.load", err)
	}
	return msgs, nil
}

// Append buffers message in memory for taskID. Callers batch appends
// before calling Save (§4.D).
func (s *Store) Append(taskID string, message Message) {
	s.mem.Lock()
	defer s.mem.Unlock()
	s.pending[taskID] = append(s.pending[taskID], message)
}

// Pending returns a copy of the messages buffered for taskID since the
// last Save, without clearing them.
func (s *Store) Pending(taskID string) []Message {
	s.mem.Lock()
	defer s.mem.Unlock()
	out := make([]Message, len(s.pending[taskID]))
	copy(out, s.pending[taskID])
	return out
}

// Save atomically writes both message files and task_metadata.json for
// taskID, merging any buffered Append calls into the on-disk history.
// Each file is written temp-then-rename independently; metadata is
// written last (§4.D: "no cross-file atomicity is promised beyond
// best-effort ordering"). The operation is idempotent: calling it again
// with no new appends re-persists the same content.
func (s *Store) Save(repoRoot, taskID string, meta Metadata) error {
	lock := s.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	dir := taskDir(repoRoot, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errkind.New(errkind.IOError, "store.save", err)
	}

	apiPath := filepath.Join(dir, apiHistoryFile)
	existing, err := loadMessages(apiPath)
	if err != nil {
		return err
	}

	s.mem.Lock()
	buffered := s.pending[taskID]
	delete(s.pending, taskID)
	s.mem.Unlock()

	merged := append(existing, buffered...)

	if err := writeJSONAtomic(apiPath, merged); err != nil {
		return errkind.New(errkind.IOError, "store.save", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, uiMessagesFile), merged); err != nil {
		return errkind.New(errkind.IOError, "store.save", err)
	}

	meta.SizeBytes = dirSize(dir)
	if err := writeJSONAtomic(filepath.Join(dir, metadataFile), meta); err != nil {
		return errkind.New(errkind.IOError, "store.save", err)
	}
	return nil
}

// Truncate rewinds taskID's persisted message log to its first n
// entries, discarding anything appended after that point and any
// not-yet-saved buffered Append calls (§11: Task Engine rewind,
// engine.Rewind).
func (s *Store) Truncate(repoRoot, taskID string, n int) error {
	lock := s.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	dir := taskDir(repoRoot, taskID)
	apiPath := filepath.Join(dir, apiHistoryFile)
	existing, err := loadMessages(apiPath)
	if err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	if n > len(existing) {
		n = len(existing)
	}
	truncated := existing[:n]

	s.mem.Lock()
	delete(s.pending, taskID)
	s.mem.Unlock()

	if err := writeJSONAtomic(apiPath, truncated); err != nil {
		return errkind.New(errkind.IOError, "store.truncate", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, uiMessagesFile), truncated); err != nil {
		return errkind.New(errkind.IOError, "store.truncate", err)
	}
	return nil
}

// Delete removes the task directory recursively. A missing directory
// is success (§4.D).
func (s *Store) Delete(repoRoot, taskID string) error {
	lock := s.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	dir := taskDir(repoRoot, taskID)
	if err := os.RemoveAll(dir); err != nil {
		return errkind.New(errkind.IOError, "store.delete", err)
	}

	s.mem.Lock()
	delete(s.pending, taskID)
	s.mem.Unlock()
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
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
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

func dirSize(dir string) int64 {
	var total int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || e.IsDir() {
			continue
		}
		total += info.Size()
	}
	return total
}
