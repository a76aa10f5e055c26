package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avo-tools/sarsync/internal/domain"
)

// Dir is the local archive directory: populated by the processor, mirrored by
// the transfer targets, and purged (contents only, never the directory) after
// a confirmed sync.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive directory: %w", err)
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Path() string {
	return d.root
}

// Scan walks the archive recursively and returns a checksummed snapshot.
// Directories and symlinks are not archive files. Paths are slash-separated
// and sorted for deterministic reporting.
func (d *Dir) Scan(ctx context.Context) (*domain.Snapshot, error) {
	snapshot := &domain.Snapshot{TakenAt: time.Now()}

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		checksum, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", rel, err)
		}

		snapshot.Files = append(snapshot.Files, domain.ArchiveFile{
			RelPath:  filepath.ToSlash(rel),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Checksum: checksum,
		})
		snapshot.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan archive: %w", err)
	}

	sort.Slice(snapshot.Files, func(i, j int) bool {
		return snapshot.Files[i].RelPath < snapshot.Files[j].RelPath
	})

	return snapshot, nil
}

// Remove deletes exactly the named entries, then prunes any subdirectories
// left empty. The archive root itself is never removed, and paths that
// resolve outside it are rejected.
func (d *Dir) Remove(ctx context.Context, relPaths []string) (int, error) {
	removed := 0
	for _, rel := range relPaths {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		full, err := d.resolve(rel)
		if err != nil {
			return removed, err
		}

		if err := os.Remove(full); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("failed to delete %s: %w", rel, err)
		}
		removed++
	}

	if err := d.pruneEmptyDirs(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (d *Dir) resolve(rel string) (string, error) {
	full := filepath.Join(d.root, filepath.FromSlash(rel))
	check, err := filepath.Rel(d.root, full)
	if err != nil || check == "." || check == ".." || strings.HasPrefix(check, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes archive directory: %s", rel)
	}
	return full, nil
}

func (d *Dir) pruneEmptyDirs() error {
	// Deepest-first so nested empties collapse in one pass.
	var dirs []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() && path != d.root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk archive: %w", err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", dir, err)
		}
		if len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				return fmt.Errorf("failed to prune %s: %w", dir, err)
			}
		}
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
