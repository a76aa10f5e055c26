package transfer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/avo-tools/sarsync/internal/config"
	"github.com/avo-tools/sarsync/internal/domain"
)

// RsyncTransfer mirrors the archive directory to a remote host by invoking
// rsync over SSH. The delta algorithm and the wire protocol stay rsync's
// problem; this adapter only builds the invocation and accounts for which
// files ended up confirmed on the remote.
type RsyncTransfer struct {
	config *config.TargetConfig
	source string
}

// NewRsync creates a target mirroring sourceDir's contents (trailing-slash
// semantics) into the configured remote path.
func NewRsync(cfg *config.TargetConfig, sourceDir string) *RsyncTransfer {
	return &RsyncTransfer{config: cfg, source: sourceDir}
}

func (r *RsyncTransfer) Name() string {
	return r.config.DisplayName()
}

func (r *RsyncTransfer) Type() string {
	return "rsync"
}

// Mirror runs a transfer pass followed by a dry-run verification pass. A file
// is confirmed only when the verification pass no longer lists it as pending.
func (r *RsyncTransfer) Mirror(ctx context.Context, snapshot *domain.Snapshot) (*domain.TransferReport, error) {
	start := time.Now()
	report := domain.NewTransferReport()
	if snapshot.IsEmpty() {
		report.Duration = time.Since(start)
		return report, nil
	}

	transferred, err := r.run(ctx, false)
	if err != nil {
		report.Pending = snapshot.RelPaths()
		report.Duration = time.Since(start)
		return report, fmt.Errorf("rsync transfer: %w", err)
	}
	report.Transferred = len(transferred)

	pending, err := r.run(ctx, true)
	if err != nil {
		report.Pending = snapshot.RelPaths()
		report.Duration = time.Since(start)
		return report, fmt.Errorf("rsync verify: %w", err)
	}

	for _, file := range snapshot.Files {
		if pending[file.RelPath] {
			report.Pending = append(report.Pending, file.RelPath)
		} else {
			report.Confirmed[file.RelPath] = true
		}
	}
	report.Duration = time.Since(start)

	if !report.Complete() {
		return report, fmt.Errorf("rsync left %d file(s) unverified on %s", len(report.Pending), r.Name())
	}
	return report, nil
}

// run executes one rsync pass and returns the relative paths it itemized.
// With dryRun the result is the set of files that still differ.
func (r *RsyncTransfer) run(ctx context.Context, dryRun bool) (map[string]bool, error) {
	args := r.buildArgs(dryRun)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "rsync", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rsync failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseItemized(stdout.Bytes()), nil
}

func (r *RsyncTransfer) buildArgs(dryRun bool) []string {
	args := []string{"-rlptz", "--out-format=%i %n"}
	if dryRun {
		args = append(args, "--dry-run")
	}
	if r.config.TimeoutSeconds > 0 {
		args = append(args, fmt.Sprintf("--timeout=%d", r.config.TimeoutSeconds))
	}
	if len(r.config.SSHOptions) > 0 {
		args = append(args, "-e", "ssh "+strings.Join(r.config.SSHOptions, " "))
	}
	// Trailing slash: mirror the directory's contents, not the directory.
	args = append(args, strings.TrimSuffix(r.source, "/")+"/", r.destSpec())
	return args
}

func (r *RsyncTransfer) destSpec() string {
	if r.config.User != "" {
		return fmt.Sprintf("%s@%s:%s", r.config.User, r.config.Host, r.config.Path)
	}
	return fmt.Sprintf("%s:%s", r.config.Host, r.config.Path)
}

// parseItemized extracts file paths from --out-format=%i %n lines, skipping
// directory entries.
func parseItemized(output []byte) map[string]bool {
	files := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		flags, name, ok := strings.Cut(line, " ")
		if !ok || len(flags) < 2 {
			continue
		}
		// Second itemize character is the file type: f, d, L, ...
		if flags[1] != 'f' {
			continue
		}
		name = strings.TrimSuffix(name, "/")
		if name != "" {
			files[name] = true
		}
	}
	return files
}
