package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avo-tools/sarsync/internal/domain"
)

type Archive interface {
	Scan(ctx context.Context) (*domain.Snapshot, error)
	Remove(ctx context.Context, relPaths []string) (int, error)
}

type Locker interface {
	Acquire() error
	Release() error
}

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type SyncTarget struct {
	Name     string
	Transfer domain.Transfer
}

// Pipeline runs the process -> scan -> sync -> clean sequence. Each stage
// must succeed before the next starts; any failure short-circuits the run
// with a stage-tagged error and leaves the local archive untouched.
type Pipeline struct {
	processor       domain.Processor
	archive         Archive
	targets         []SyncTarget
	lock            Locker
	logger          Logger
	deleteAfterSync bool
}

func NewPipeline(
	processor domain.Processor,
	archive Archive,
	targets []SyncTarget,
	lock Locker,
	logger Logger,
	deleteAfterSync bool,
) *Pipeline {
	return &Pipeline{
		processor:       processor,
		archive:         archive,
		targets:         targets,
		lock:            lock,
		logger:          logger,
		deleteAfterSync: deleteAfterSync,
	}
}

func (uc *Pipeline) Execute(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{StartedAt: time.Now()}

	if err := uc.lock.Acquire(); err != nil {
		report.Err = fmt.Errorf("run lock: %w", err)
		return report, report.Err
	}
	defer func() {
		if err := uc.lock.Release(); err != nil {
			uc.logger.Warnf("Failed to release run lock: %v", err)
		}
	}()

	err := uc.execute(ctx, report)
	report.Duration = time.Since(report.StartedAt)
	report.Err = err
	return report, err
}

func (uc *Pipeline) execute(ctx context.Context, report *domain.RunReport) error {
	if err := uc.runProcess(ctx, report); err != nil {
		return err
	}

	snapshot, err := uc.runScan(ctx, report)
	if err != nil {
		return err
	}

	if snapshot.IsEmpty() {
		// Nothing produced is a successful no-op, not an error.
		uc.logger.Infof("Archive is empty, nothing to sync")
		report.Stages = append(report.Stages,
			domain.StageResult{Stage: domain.StageSync, Skipped: true},
			domain.StageResult{Stage: domain.StageClean, Skipped: true})
		return nil
	}

	confirmed, err := uc.runSync(ctx, report, snapshot)
	if err != nil {
		return err
	}

	return uc.runClean(ctx, report, confirmed)
}

func (uc *Pipeline) runProcess(ctx context.Context, report *domain.RunReport) error {
	if uc.processor == nil {
		report.Stages = append(report.Stages, domain.StageResult{Stage: domain.StageProcess, Skipped: true})
		return nil
	}

	start := time.Now()
	uc.logger.Infof("Running processor: %s", uc.processor.Name())
	err := uc.processor.Run(ctx)
	uc.recordStage(report, domain.StageProcess, start, err)
	if err != nil {
		return domain.NewStageError(domain.StageProcess, err)
	}

	uc.logger.Infof("Processor finished in %s", time.Since(start).Round(time.Second))
	return nil
}

func (uc *Pipeline) runScan(ctx context.Context, report *domain.RunReport) (*domain.Snapshot, error) {
	start := time.Now()
	snapshot, err := uc.archive.Scan(ctx)
	uc.recordStage(report, domain.StageScan, start, err)
	if err != nil {
		return nil, domain.NewStageError(domain.StageScan, err)
	}

	uc.logger.Infof("Archive scan: %d file(s), %.2f MB",
		len(snapshot.Files), float64(snapshot.TotalBytes)/(1024*1024))
	return snapshot, nil
}

// runSync mirrors the snapshot to every target concurrently. It returns the
// set of files confirmed by all of them; if any target failed or left files
// unverified, the error aborts the run before cleaning.
func (uc *Pipeline) runSync(ctx context.Context, report *domain.RunReport, snapshot *domain.Snapshot) ([]string, error) {
	start := time.Now()

	type outcome struct {
		target SyncTarget
		report *domain.TransferReport
		err    error
	}

	outcomes := make([]outcome, len(uc.targets))
	var wg sync.WaitGroup
	for i, target := range uc.targets {
		wg.Add(1)
		go func(i int, t SyncTarget) {
			defer wg.Done()
			uc.logger.Infof("Syncing %d file(s) to %s...", len(snapshot.Files), t.Name)
			r, err := t.Transfer.Mirror(ctx, snapshot)
			if err != nil {
				uc.logger.Errorf("Sync to %s failed: %v", t.Name, err)
			} else {
				uc.logger.Infof("Sync to %s complete: %d transferred, %d confirmed",
					t.Name, r.Transferred, len(r.Confirmed))
			}
			outcomes[i] = outcome{target: t, report: r, err: err}
		}(i, target)
	}
	wg.Wait()

	var syncErr error
	for _, o := range outcomes {
		if o.err != nil && syncErr == nil {
			syncErr = fmt.Errorf("target %s: %w", o.target.Name, o.err)
		}
		if o.report != nil {
			report.FilesSynced += o.report.Transferred
		}
	}
	report.BytesSynced = snapshot.TotalBytes
	uc.recordStage(report, domain.StageSync, start, syncErr)
	if syncErr != nil {
		return nil, domain.NewStageError(domain.StageSync, syncErr)
	}

	// A file is safe to delete only once every target has confirmed it.
	var confirmed []string
	for _, file := range snapshot.Files {
		ok := true
		for _, o := range outcomes {
			if o.report == nil || !o.report.Confirmed[file.RelPath] {
				ok = false
				break
			}
		}
		if ok {
			confirmed = append(confirmed, file.RelPath)
		}
	}
	return confirmed, nil
}

func (uc *Pipeline) runClean(ctx context.Context, report *domain.RunReport, confirmed []string) error {
	if !uc.deleteAfterSync {
		uc.logger.Infof("delete_after_sync disabled, keeping local copies")
		report.Stages = append(report.Stages, domain.StageResult{Stage: domain.StageClean, Skipped: true})
		return nil
	}

	start := time.Now()
	removed, err := uc.archive.Remove(ctx, confirmed)
	report.FilesRemoved = removed
	uc.recordStage(report, domain.StageClean, start, err)
	if err != nil {
		return domain.NewStageError(domain.StageClean, err)
	}

	uc.logger.Infof("Cleaned %d transferred file(s) from archive", removed)
	return nil
}

func (uc *Pipeline) recordStage(report *domain.RunReport, stage domain.Stage, start time.Time, err error) {
	report.Stages = append(report.Stages, domain.StageResult{
		Stage:    stage,
		Duration: time.Since(start),
		Err:      err,
	})
}
