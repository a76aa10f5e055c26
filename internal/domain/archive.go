package domain

import (
	"time"
)

// ArchiveFile is one file inside the local archive directory. Contents are
// opaque; only the relative path and the checksum matter to the pipeline.
type ArchiveFile struct {
	RelPath  string
	Size     int64
	ModTime  time.Time
	Checksum string
}

// Snapshot is the state of the archive directory at scan time.
type Snapshot struct {
	Files      []ArchiveFile
	TotalBytes int64
	TakenAt    time.Time
}

func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Files) == 0
}

// RelPaths returns the relative paths of all files in scan order.
func (s *Snapshot) RelPaths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		paths = append(paths, f.RelPath)
	}
	return paths
}
