// Package journal keeps the durable record of which files and folders have
// been uploaded, so sessions can resume after power loss without re-sending
// or silently dropping data.
//
// Persistence is two-layered. A snapshot file holds the full state and is
// rewritten via temp-file-plus-rename, so a crash mid-save leaves either the
// old or the new snapshot. Individual completions between snapshots are
// appended to a small delta log as single bounded writes and replayed over
// the snapshot on load; a torn trailing line is skipped. Unreadable state of
// either kind degrades to an empty journal: the worst case is a redundant
// re-upload, never a silently dropped file.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dmitrijs2005/cardsync/internal/common"
	"github.com/dmitrijs2005/cardsync/internal/filex"
	"github.com/dmitrijs2005/cardsync/internal/logging"
)

const deltaSuffix = ".delta"

// pendingPromotionAge is how long a folder may sit pending (seen but empty)
// before it is treated as completed and no longer rescanned.
const pendingPromotionAge = 7 * 24 * time.Hour

// Journal is the in-memory view of the persisted upload state. It assumes a
// single writer; the agent accesses it only from the control loop.
type Journal struct {
	path string
	log  logging.Logger

	files      map[string]string
	completed  map[string]struct{}
	pending    map[string]int64
	lastUpload int64
}

// New returns a Journal persisting to path. Call Load before first use.
func New(path string, log logging.Logger) *Journal {
	j := &Journal{path: path, log: log}
	j.reset()
	return j
}

func (j *Journal) reset() {
	j.files = make(map[string]string)
	j.completed = make(map[string]struct{})
	j.pending = make(map[string]int64)
	j.lastUpload = 0
}

func (j *Journal) deltaPath() string { return j.path + deltaSuffix }

// Load reads the snapshot and replays the delta log. Missing or corrupt state
// is never fatal: the journal falls back to "nothing uploaded yet", which is
// always safe, and the corruption is only logged.
func (j *Journal) Load(ctx context.Context) {
	j.reset()

	if err := j.loadSnapshot(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			j.log.Info(ctx, "no journal snapshot, starting empty", "path", j.path)
		} else {
			j.log.Warn(ctx, "journal snapshot unreadable, starting empty",
				"path", j.path, "error", errors.Join(common.ErrJournalCorrupt, err).Error())
			j.reset()
		}
	}

	replayed, skipped, err := j.replayDelta()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		j.log.Warn(ctx, "journal delta log unreadable, ignoring",
			"path", j.deltaPath(), "error", err.Error())
	}
	if replayed > 0 || skipped > 0 {
		j.log.Debug(ctx, "journal delta replayed", "records", replayed, "skipped", skipped)
	}

	j.log.Info(ctx, "journal loaded",
		"files", len(j.files), "completed_folders", len(j.completed), "pending_folders", len(j.pending))
}

func (j *Journal) loadSnapshot() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return err
	}

	var st persistentState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if st.Version != CurrentVersion {
		return fmt.Errorf("unsupported snapshot version %d", st.Version)
	}

	for path, sum := range st.Files {
		j.files[path] = sum
	}
	for _, folder := range st.CompletedFolders {
		j.completed[folder] = struct{}{}
	}
	for folder, seen := range st.PendingFolders {
		j.pending[folder] = seen
	}
	j.lastUpload = st.LastUploadUnix
	return nil
}

// replayDelta applies delta-log records on top of the snapshot. Unparsable
// lines (a torn tail after power loss) are counted and skipped.
func (j *Journal) replayDelta() (replayed, skipped int, err error) {
	f, err := os.Open(j.deltaPath())
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec deltaRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		switch rec.Op {
		case opFile:
			j.files[rec.Path] = rec.Checksum
			replayed++
		case opFolder:
			j.completed[rec.Folder] = struct{}{}
			delete(j.pending, rec.Folder)
			replayed++
		default:
			skipped++
		}
	}
	return replayed, skipped, scanner.Err()
}

// Save writes a full snapshot atomically and truncates the delta log. Called
// at session boundaries; per-file completions between saves go through the
// delta log instead of rewriting the whole state.
func (j *Journal) Save(ctx context.Context) error {
	st := persistentState{
		Version:          CurrentVersion,
		Files:            j.files,
		CompletedFolders: make([]string, 0, len(j.completed)),
		LastUploadUnix:   j.lastUpload,
	}
	for folder := range j.completed {
		st.CompletedFolders = append(st.CompletedFolders, folder)
	}
	sort.Strings(st.CompletedFolders)
	if len(j.pending) > 0 {
		st.PendingFolders = j.pending
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := filex.WriteAtomic(j.path, data); err != nil {
		return fmt.Errorf("save journal: %w", err)
	}

	// The snapshot now covers everything the delta log recorded.
	if err := os.Remove(j.deltaPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		j.log.Warn(ctx, "journal delta log not truncated", "error", err.Error())
	}
	return nil
}

// IsFileUploaded reports whether path was uploaded with exactly this content.
// A changed file (different checksum) counts as not uploaded.
func (j *Journal) IsFileUploaded(path, checksum string) bool {
	stored, ok := j.files[path]
	return ok && checksum != "" && stored == checksum
}

// MarkFileUploaded records a completed file and persists the completion as a
// single bounded append, keeping the power-loss corruption window minimal.
func (j *Journal) MarkFileUploaded(ctx context.Context, path, checksum string) error {
	j.files[path] = checksum

	line, err := json.Marshal(deltaRecord{Op: opFile, Path: path, Checksum: checksum})
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}
	if err := filex.AppendLine(j.deltaPath(), line); err != nil {
		return fmt.Errorf("persist file completion: %w", err)
	}
	return nil
}

// IsFolderCompleted reports whether every file of the folder was uploaded.
func (j *Journal) IsFolderCompleted(folder string) bool {
	_, ok := j.completed[folder]
	return ok
}

// MarkFolderCompleted records folder completion, same contract as
// MarkFileUploaded. The folder also leaves the pending set.
func (j *Journal) MarkFolderCompleted(ctx context.Context, folder string) error {
	j.completed[folder] = struct{}{}
	delete(j.pending, folder)

	line, err := json.Marshal(deltaRecord{Op: opFolder, Folder: folder})
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}
	if err := filex.AppendLine(j.deltaPath(), line); err != nil {
		return fmt.Errorf("persist folder completion: %w", err)
	}
	return nil
}

// MarkFolderPending remembers when an empty folder was first seen. Completed
// folders are never demoted.
func (j *Journal) MarkFolderPending(folder string, firstSeen time.Time) {
	if j.IsFolderCompleted(folder) {
		return
	}
	if _, ok := j.pending[folder]; !ok {
		j.pending[folder] = firstSeen.Unix()
	}
}

// IsFolderPending reports whether folder is in the pending set.
func (j *Journal) IsFolderPending(folder string) bool {
	_, ok := j.pending[folder]
	return ok
}

// PromotePendingFolders moves folders that have stayed pending for at least
// pendingPromotionAge into the completed set (the therapy device left them
// empty; there is nothing to wait for). Returns the promoted folder ids.
func (j *Journal) PromotePendingFolders(ctx context.Context, now time.Time) []string {
	var promoted []string
	for folder, seen := range j.pending {
		if now.Sub(time.Unix(seen, 0)) >= pendingPromotionAge {
			if err := j.MarkFolderCompleted(ctx, folder); err != nil {
				j.log.Warn(ctx, "pending folder promotion not persisted",
					"folder", folder, "error", err.Error())
				continue
			}
			promoted = append(promoted, folder)
		}
	}
	return promoted
}

// SetLastUpload records when the last successful session finished. Persisted
// with the next Save.
func (j *Journal) SetLastUpload(t time.Time) { j.lastUpload = t.Unix() }

// LastUpload returns the recorded end of the last successful session, or the
// zero time if none.
func (j *Journal) LastUpload() time.Time {
	if j.lastUpload == 0 {
		return time.Time{}
	}
	return time.Unix(j.lastUpload, 0)
}

// FileCount returns how many file completions are tracked.
func (j *Journal) FileCount() int { return len(j.files) }

// CompletedFolderCount returns how many folders are fully uploaded.
func (j *Journal) CompletedFolderCount() int { return len(j.completed) }

// PendingFolderCount returns how many folders await content.
func (j *Journal) PendingFolderCount() int { return len(j.pending) }
