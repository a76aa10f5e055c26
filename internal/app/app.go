package app

import (
	"context"
	"fmt"
	"time"

	"github.com/avo-tools/sarsync/internal/adapter/archive"
	"github.com/avo-tools/sarsync/internal/adapter/notify"
	"github.com/avo-tools/sarsync/internal/adapter/processor"
	"github.com/avo-tools/sarsync/internal/adapter/transfer"
	"github.com/avo-tools/sarsync/internal/config"
	"github.com/avo-tools/sarsync/internal/domain"
	"github.com/avo-tools/sarsync/internal/infrastructure/lockfile"
	"github.com/avo-tools/sarsync/internal/infrastructure/logger"
	"github.com/avo-tools/sarsync/internal/infrastructure/scheduler"
	"github.com/avo-tools/sarsync/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	pipeline  *usecase.Pipeline
	retention *usecase.Retention
	notifier  domain.Notifier
}

func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	archiveDir, err := archive.NewDir(cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive directory: %w", err)
	}
	log.Infof("Archive directory: %s", archiveDir.Path())

	var proc domain.Processor
	if cfg.Processor.Enabled {
		proc = processor.NewExec(&cfg.Processor)
		log.Infof("✓ Processor: %s", cfg.Processor.Command)
	} else {
		log.Warnf("Processor disabled, runs will only sync existing archive contents")
	}

	syncTargets, janitorTargets, err := initializeTargets(cfg, archiveDir.Path(), log)
	if err != nil {
		return nil, err
	}

	var notifier domain.Notifier
	if cfg.Notify.Enabled {
		notifier, err = notify.NewTelegram(&cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
		log.Infof("✓ Telegram notifications enabled")
	}

	lock := lockfile.New(cfg.Pipeline.LockFile)

	pipeline := usecase.NewPipeline(
		proc,
		archiveDir,
		syncTargets,
		lock,
		log,
		cfg.Pipeline.DeleteAfterSync,
	)

	retention := usecase.NewRetention(janitorTargets, log)

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: scheduler.New(),
		pipeline:  pipeline,
		retention: retention,
		notifier:  notifier,
	}, nil
}

// initializeTargets builds every enabled transfer target. Initialization
// failure is fatal: the clean stage's safety depends on every configured
// target taking part in the sync.
func initializeTargets(cfg *config.Config, archivePath string, log *logger.Logger) ([]usecase.SyncTarget, []usecase.JanitorTarget, error) {
	var syncTargets []usecase.SyncTarget
	var janitorTargets []usecase.JanitorTarget

	for _, targetCfg := range cfg.GetEnabledTargets() {
		var t domain.Transfer
		var err error

		switch targetCfg.Type {
		case "rsync":
			t = transfer.NewRsync(&targetCfg, archivePath)
			log.Infof("✓ rsync target enabled: %s", targetCfg.Host)

		case "s3":
			t, err = transfer.NewS3(&targetCfg, archivePath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to initialize S3 target: %w", err)
			}
			log.Infof("✓ S3 target enabled (bucket: %s)", targetCfg.Bucket)

		case "gdrive":
			t, err = transfer.NewGDrive(&targetCfg, archivePath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to initialize Google Drive target: %w", err)
			}
			log.Infof("✓ Google Drive target enabled")
		}

		syncTargets = append(syncTargets, usecase.SyncTarget{
			Name:     targetCfg.DisplayName(),
			Transfer: t,
		})

		if targetCfg.RetentionDays > 0 {
			if janitor, ok := t.(domain.Janitor); ok {
				janitorTargets = append(janitorTargets, usecase.JanitorTarget{
					Name:          targetCfg.DisplayName(),
					Janitor:       janitor,
					RetentionDays: targetCfg.RetentionDays,
				})
			} else {
				log.Warnf("Target %s cannot prune remote copies, ignoring retention_days", targetCfg.DisplayName())
			}
		}
	}

	return syncTargets, janitorTargets, nil
}

// RunOnce executes a single pipeline run and reports the outcome, for cron
// or manual invocation.
func (a *App) RunOnce(ctx context.Context) error {
	report, err := a.pipeline.Execute(ctx)
	a.notifyRun(ctx, report)
	return err
}

// Run schedules pipeline and retention jobs and blocks until the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.config.Pipeline.Schedule == "" {
		return fmt.Errorf("pipeline.schedule is required (or invoke with -once)")
	}

	err := a.scheduler.AddJob(a.config.Pipeline.Schedule, func(ctx context.Context) error {
		a.logger.Infof("=== Triggered scheduled pipeline run ===")
		return a.RunOnce(ctx)
	}, func(err error) {
		a.logger.Errorf("Pipeline run failed: %v", err)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pipeline: %w", err)
	}
	a.logger.Infof("Pipeline schedule: %s", a.config.Pipeline.Schedule)

	if schedule := a.config.Pipeline.RetentionSchedule; schedule != "" {
		if err := a.scheduler.AddJob(schedule, a.retention.Execute, func(err error) {
			a.logger.Errorf("Retention run failed: %v", err)
		}); err != nil {
			return fmt.Errorf("failed to schedule retention: %w", err)
		}
		a.logger.Infof("Retention schedule: %s", schedule)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started")

	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down...")
	a.scheduler.Stop()
	a.logger.Close()
}

func (a *App) notifyRun(ctx context.Context, report *domain.RunReport) {
	if a.notifier == nil || report == nil {
		return
	}
	if report.Succeeded() && a.config.Notify.NotifyOn != "all" {
		return
	}

	var message string
	if report.Succeeded() {
		message = fmt.Sprintf(
			"✅ %s run completed\n\nFiles synced: %d\nData: %.2f MB\nRemoved locally: %d\nDuration: %s",
			a.config.App.Name,
			report.FilesSynced,
			float64(report.BytesSynced)/(1024*1024),
			report.FilesRemoved,
			report.Duration.Round(time.Second),
		)
	} else {
		message = fmt.Sprintf(
			"❌ %s run failed\n\n%v\n\nLocal archive preserved for retry.",
			a.config.App.Name,
			report.Err,
		)
	}

	if err := a.notifier.Notify(ctx, message); err != nil {
		a.logger.Errorf("Failed to send notification: %v", err)
	}
}
