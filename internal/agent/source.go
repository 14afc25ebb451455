package agent

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cardsync/internal/journal"
	"github.com/dmitrijs2005/cardsync/internal/scheduler"
)

// DirSource scans a card mount directory for upload candidates. Files are
// keyed by their path relative to the root (forward slashes), and grouped
// into folders by the first path element, which on therapy cards is the
// per-day data directory. Dot-prefixed entries are skipped so the journal
// and lock files living on the card are never uploaded.
type DirSource struct {
	root string
}

// NewDirSource returns a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// Scan implements scheduler.Source. Each file is checksummed during the scan;
// the card is held at that point, so reading is safe.
func (s *DirSource) Scan(ctx context.Context) ([]scheduler.FileInfo, []string, error) {
	var files []scheduler.FileInfo
	seenFolders := make(map[string]bool) // folder -> has at least one file

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if path != s.root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != s.root && !strings.Contains(rel, "/") {
				if _, ok := seenFolders[rel]; !ok {
					seenFolders[rel] = false
				}
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		folder := ""
		if i := strings.Index(rel, "/"); i >= 0 {
			folder = rel[:i]
			seenFolders[folder] = true
		}

		sum, err := journal.ChecksumFile(path)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", rel, err)
		}

		files = append(files, scheduler.FileInfo{
			Path:      rel,
			LocalPath: path,
			Folder:    folder,
			Size:      info.Size(),
			Checksum:  sum,
		})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	var empty []string
	for folder, hasFiles := range seenFolders {
		if !hasFiles {
			empty = append(empty, folder)
		}
	}
	return files, empty, nil
}

var _ scheduler.Source = (*DirSource)(nil)
