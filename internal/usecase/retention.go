package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/avo-tools/sarsync/internal/domain"
)

type JanitorTarget struct {
	Name          string
	Janitor       domain.Janitor
	RetentionDays int
}

// Retention prunes remote copies older than each target's retention window.
// Targets that cannot list their own remotes (rsync) are simply not enrolled.
type Retention struct {
	targets []JanitorTarget
	logger  Logger
}

func NewRetention(targets []JanitorTarget, logger Logger) *Retention {
	return &Retention{targets: targets, logger: logger}
}

func (uc *Retention) Execute(ctx context.Context) error {
	if len(uc.targets) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, target := range uc.targets {
		wg.Add(1)
		go func(t JanitorTarget) {
			defer wg.Done()
			if err := uc.pruneTarget(ctx, t); err != nil {
				uc.logger.Errorf("Retention failed for %s: %v", t.Name, err)
			}
		}(target)
	}
	wg.Wait()

	return nil
}

func (uc *Retention) pruneTarget(ctx context.Context, target JanitorTarget) error {
	cutoff := time.Now().AddDate(0, 0, -target.RetentionDays)
	uc.logger.Infof("Pruning %s: copies older than %d day(s)", target.Name, target.RetentionDays)

	names, err := target.Janitor.ListOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	deleted := 0
	for _, name := range names {
		if err := target.Janitor.Delete(ctx, name); err != nil {
			uc.logger.Errorf("Failed to delete %s from %s: %v", name, target.Name, err)
		} else {
			deleted++
		}
	}

	uc.logger.Infof("Deleted %d expired remote cop(ies) from %s", deleted, target.Name)
	return nil
}
