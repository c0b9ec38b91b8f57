package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/relayagent/agentd/internal/pathguard"
)

const checkpointPreviewMaxLen = 100

// checkpointTrackedTools names the mutating tools whose file_path argument
// triggers a pre-modification snapshot (§11).
var checkpointTrackedTools = map[string]bool{
	"write_to_file":   true,
	"replace_in_file": true,
}

// FileSnapshot records a file's on-disk state the first time a mutating
// tool targets it within a task, so a later Rewind can put back exactly
// what the task found.
type FileSnapshot struct {
	Existed bool
	Content []byte
}

// Checkpoint captures conversation and file state at the start of a user
// turn (§11).
type Checkpoint struct {
	Turn      int
	Timestamp float64
	Preview   string
	MsgIndex  int
	Files     map[string]*FileSnapshot
}

// CheckpointItem is a lightweight view of a Checkpoint for listing.
type CheckpointItem struct {
	Turn      int     `json:"turn"`
	Timestamp float64 `json:"timestamp"`
	Preview   string  `json:"preview"`
}

// RewindMode selects what Rewind restores.
type RewindMode int

const (
	RewindConversation RewindMode = iota
	RewindCode
	RewindAll
)

type taskCheckpoints struct {
	mu            sync.Mutex
	list          []Checkpoint
	fileOriginals map[string]*FileSnapshot
}

func (e *Engine) checkpointsFor(taskID string) *taskCheckpoints {
	e.checkpointMu.Lock()
	defer e.checkpointMu.Unlock()
	tc, ok := e.taskCheckpoints[taskID]
	if !ok {
		tc = &taskCheckpoints{fileOriginals: make(map[string]*FileSnapshot)}
		e.taskCheckpoints[taskID] = tc
	}
	return tc
}

// createCheckpoint records a checkpoint before a new user turn begins,
// pairing msgIndex (the persisted message count at that point) with the
// current on-disk content of every file already touched by this task.
func (e *Engine) createCheckpoint(taskID, userInput string, msgIndex int) {
	tc := e.checkpointsFor(taskID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	preview := userInput
	if len(preview) > checkpointPreviewMaxLen {
		preview = preview[:checkpointPreviewMaxLen]
	}

	files := make(map[string]*FileSnapshot, len(tc.fileOriginals))
	for path := range tc.fileOriginals {
		files[path] = readSnapshot(path)
	}

	tc.list = append(tc.list, Checkpoint{
		Turn:      len(tc.list) + 1,
		Timestamp: nowFunc(),
		Preview:   preview,
		MsgIndex:  msgIndex,
		Files:     files,
	})
}

// captureFileBeforeModification snapshots a tool's file_path argument the
// first time this task's mutating tools target it. Later calls for the
// same path are no-ops, so the snapshot always reflects state from before
// this task touched the file.
func (e *Engine) captureFileBeforeModification(taskID, repoRoot, toolName string, rawParams json.RawMessage) {
	if !checkpointTrackedTools[toolName] {
		return
	}
	path, ok := extractFilePath(rawParams)
	if !ok {
		return
	}
	abs, err := pathguard.Resolve(repoRoot, path)
	if err != nil {
		return
	}

	tc := e.checkpointsFor(taskID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if _, ok := tc.fileOriginals[abs]; ok {
		return
	}
	tc.fileOriginals[abs] = readSnapshot(abs)
}

func extractFilePath(raw json.RawMessage) (string, bool) {
	var p struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.FilePath == "" {
		return "", false
	}
	return p.FilePath, true
}

func readSnapshot(path string) *FileSnapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		return &FileSnapshot{Existed: false}
	}
	return &FileSnapshot{Existed: true, Content: data}
}

// Checkpoints returns a task's checkpoints in creation order, for
// /rewind-style UI listing.
func (e *Engine) Checkpoints(taskID string) []CheckpointItem {
	tc := e.checkpointsFor(taskID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	items := make([]CheckpointItem, len(tc.list))
	for i, cp := range tc.list {
		items[i] = CheckpointItem{Turn: cp.Turn, Timestamp: cp.Timestamp, Preview: cp.Preview}
	}
	return items
}

// Rewind restores task state to the given 1-based checkpoint turn. Modes
// RewindCode and RewindAll restore the working copy directly; modes
// RewindConversation and RewindAll truncate the persisted message log
// through the Conversation Store, giving /rewind-style recovery without
// touching any spec.md invariant — checkpoints are kept in memory per
// task: one is recorded at the start of each turn, together with the
// file snapshots captured before the write/replace tools run.
func (e *Engine) Rewind(repoRoot, taskID string, turn int, mode RewindMode) error {
	tc := e.checkpointsFor(taskID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if turn < 1 || turn > len(tc.list) {
		return fmt.Errorf("invalid checkpoint turn: %d", turn)
	}
	cp := tc.list[turn-1]

	if mode == RewindCode || mode == RewindAll {
		for path, snap := range cp.Files {
			if err := restoreSnapshot(path, snap); err != nil {
				return err
			}
		}
		for path, snap := range tc.fileOriginals {
			if _, inCheckpoint := cp.Files[path]; inCheckpoint {
				continue
			}
			if err := restoreSnapshot(path, snap); err != nil {
				return err
			}
		}
		trimmed := make(map[string]*FileSnapshot, len(cp.Files))
		for path := range cp.Files {
			if snap, ok := tc.fileOriginals[path]; ok {
				trimmed[path] = snap
			}
		}
		tc.fileOriginals = trimmed
	}

	if mode == RewindConversation || mode == RewindAll {
		if err := e.Store.Truncate(repoRoot, taskID, cp.MsgIndex); err != nil {
			return err
		}
	}

	tc.list = tc.list[:turn-1]
	return nil
}

func restoreSnapshot(path string, snap *FileSnapshot) error {
	if snap == nil || !snap.Existed {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("restore %s: %w", path, err)
		}
		return nil
	}
	if err := os.WriteFile(path, snap.Content, 0o644); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return nil
}
