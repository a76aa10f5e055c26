package domain

import (
	"context"
	"time"
)

// Transfer mirrors archive files to a remote target. Mirror must report which
// files it confirmed on the remote: the clean stage deletes a local file only
// when every enabled target confirmed it.
type Transfer interface {
	Mirror(ctx context.Context, snapshot *Snapshot) (*TransferReport, error)
	Name() string
	Type() string
}

// TransferReport is the outcome of one Mirror call. Confirmed holds relative
// paths verified present on the remote; Pending holds paths that were not.
type TransferReport struct {
	Confirmed   map[string]bool
	Pending     []string
	Transferred int
	Duration    time.Duration
}

func NewTransferReport() *TransferReport {
	return &TransferReport{Confirmed: make(map[string]bool)}
}

func (r *TransferReport) Complete() bool {
	return len(r.Pending) == 0
}

// Janitor is implemented by targets that can list and prune their own remote
// copies for retention.
type Janitor interface {
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
	Delete(ctx context.Context, remoteName string) error
}
