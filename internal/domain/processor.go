package domain

import "context"

// Processor runs the external SAR processing program. The program is trusted
// to populate the archive directory as a side effect; the pipeline only cares
// about its exit status.
type Processor interface {
	Run(ctx context.Context) error
	Name() string
}
