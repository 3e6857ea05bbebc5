// Package ffmpegtest provides a scripted ffmpeg.Runner for tests.
package ffmpegtest

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"

	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/ffmpeg"
)

// Handler scripts the result of one command.
type Handler func(cmd ffmpeg.Command) (ffmpeg.Output, error)

// Runner records every command and answers through Handler. A nil Handler
// succeeds and touches the command's output file so later stages find it.
type Runner struct {
	Handler Handler

	mu       sync.Mutex
	commands []ffmpeg.Command
}

// Run records cmd and returns the scripted result.
func (r *Runner) Run(ctx context.Context, cmd ffmpeg.Command) (ffmpeg.Output, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ffmpeg.Output{ExitCode: -1}, fperrors.NewCancelledError(err)
	}
	if r.Handler != nil {
		return r.Handler(cmd)
	}
	return TouchOutput(cmd)
}

// Commands returns a copy of the recorded commands.
func (r *Runner) Commands() []ffmpeg.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.commands)
}

// TouchOutput writes a small file at the command's last argument when it
// looks like a real output path.
func TouchOutput(cmd ffmpeg.Command) (ffmpeg.Output, error) {
	if len(cmd.Args) == 0 {
		return ffmpeg.Output{}, nil
	}
	out := cmd.Args[len(cmd.Args)-1]
	if out == ffmpeg.NullSink() || filepath.Ext(out) == "" {
		return ffmpeg.Output{}, nil
	}
	if err := os.WriteFile(out, []byte("fake media"), 0o644); err != nil {
		return ffmpeg.Output{ExitCode: 1, Stderr: err.Error()}, fperrors.NewCommandFailedError(cmd.Program, cmd.Args, 1, err.Error())
	}
	return ffmpeg.Output{}, nil
}

// Fail returns a handler result for a non-zero exit with stderr.
func Fail(cmd ffmpeg.Command, code int, stderr string) (ffmpeg.Output, error) {
	return ffmpeg.Output{ExitCode: code, Stderr: stderr},
		fperrors.NewCommandFailedError(cmd.Program, cmd.Args, code, stderr)
}

// HasArgs reports whether args contains want as a contiguous run.
func HasArgs(args []string, want ...string) bool {
	if len(want) == 0 {
		return true
	}
	for i := 0; i+len(want) <= len(args); i++ {
		if slices.Equal(args[i:i+len(want)], want) {
			return true
		}
	}
	return false
}
