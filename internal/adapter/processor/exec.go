package processor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/avo-tools/sarsync/internal/config"
)

// ExecProcessor invokes the external SAR processing program. The program
// populates the archive directory itself; only its exit status is inspected.
type ExecProcessor struct {
	config *config.ProcessorConfig
}

func NewExec(cfg *config.ProcessorConfig) *ExecProcessor {
	return &ExecProcessor{config: cfg}
}

func (p *ExecProcessor) Run(ctx context.Context) error {
	if p.config.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.config.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.config.Command, p.config.Args...)
	cmd.Dir = p.config.WorkDir
	cmd.Env = append(os.Environ(), p.config.Env...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %d minute(s)", p.Name(), p.config.TimeoutMinutes)
		}
		return fmt.Errorf("%s failed: %w, output: %s", p.Name(), err, tail(output, 2048))
	}

	return nil
}

func (p *ExecProcessor) Name() string {
	return filepath.Base(p.config.Command)
}

// tail keeps error messages bounded when the processor is chatty.
func tail(output []byte, max int) string {
	if len(output) <= max {
		return string(output)
	}
	return "..." + string(output[len(output)-max:])
}
