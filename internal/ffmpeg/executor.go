package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/util"
)

// Progress represents encoding progress information.
type Progress struct {
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	Speed        float32
	FPS          float32
	ETA          time.Duration
	Bitrate      string
	ElapsedSecs  float64
}

// ProgressCallback is called with progress updates during encoding.
type ProgressCallback func(Progress)

// Runner executes external commands. Tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands as real subprocesses.
type ExecRunner struct {
	Logger *logging.Logger
}

// NewExecRunner creates a runner that logs through logger (or the global logger).
func NewExecRunner(logger *logging.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger}
}

var timeRegex = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.?\d*)`)

// Run starts cmd, streams stderr through the progress parser and waits for it.
// Non-zero exits return a KindCommand error whose CommandError carries the
// argument vector and stderr. Context cancellation returns KindCancelled.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	log := logging.OrGlobal(r.Logger)
	log.Debug("Running command", "cmd", cmd.String())

	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	var stdout bytes.Buffer
	c.Stdout = &stdout

	stderr, err := c.StderrPipe()
	if err != nil {
		return Output{ExitCode: -1}, fperrors.NewCommandStartError(cmd.Program, cmd.Args, err)
	}

	start := time.Now()
	if err := c.Start(); err != nil {
		return Output{ExitCode: -1}, fperrors.NewCommandStartError(cmd.Program, cmd.Args, err)
	}

	var stderrBuilder strings.Builder
	if err := parseProgress(stderr, &stderrBuilder, cmd.Duration, cmd.TotalFrames, cmd.Progress); err != nil {
		log.Warn("Error reading stderr", "cmd", cmd.Program, "error", err)
	}

	err = c.Wait()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderrBuilder.String()}
	if c.ProcessState != nil {
		out.ExitCode = c.ProcessState.ExitCode()
	}

	if err != nil {
		if ctx.Err() != nil {
			return out, fperrors.NewCancelledError(ctx.Err())
		}
		log.Debug("Command failed", "cmd", cmd.Program, "exit_code", out.ExitCode, "elapsed", time.Since(start))
		return out, fperrors.WrapExecError(cmd.Program, cmd.Args, err, out.Stderr)
	}

	log.Debug("Command finished", "cmd", cmd.Program, "elapsed", time.Since(start))
	return out, nil
}

// parseProgress reads FFmpeg stderr and parses progress updates.
func parseProgress(stderr io.Reader, stderrBuilder *strings.Builder, duration float64, totalFrames uint64, callback ProgressCallback) error {
	reader := bufio.NewReader(stderr)
	var lineBuf strings.Builder

	for {
		b, err := reader.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		stderrBuilder.WriteByte(b)

		// Progress lines end with \r or \n
		if b == '\r' || b == '\n' {
			line := lineBuf.String()
			lineBuf.Reset()

			if callback != nil && strings.Contains(line, "frame=") {
				if progress := parseProgressLine(line, duration, totalFrames); progress != nil {
					callback(*progress)
				}
			}
		} else {
			lineBuf.WriteByte(b)
		}
	}
}

// fieldValue returns the token following key= in line, or "".
func fieldValue(line, key string) string {
	idx := strings.Index(line, key+"=")
	if idx < 0 {
		return ""
	}
	remaining := strings.TrimLeft(line[idx+len(key)+1:], " ")
	if end := strings.IndexAny(remaining, " \t\r\n"); end >= 0 {
		remaining = remaining[:end]
	}
	return remaining
}

// parseProgressLine extracts progress information from an FFmpeg progress line.
func parseProgressLine(line string, duration float64, totalFrames uint64) *Progress {
	var elapsedSecs float64
	if matches := timeRegex.FindStringSubmatch(line); len(matches) >= 2 {
		if secs, ok := util.ParseFFmpegTime(matches[1]); ok {
			elapsedSecs = secs
		}
	}

	var frame uint64
	if f, err := strconv.ParseUint(fieldValue(line, "frame"), 10, 64); err == nil {
		frame = f
	}

	var fps float32
	if f, err := strconv.ParseFloat(fieldValue(line, "fps"), 32); err == nil {
		fps = float32(f)
	}

	bitrate := fieldValue(line, "bitrate")

	var speed float32
	if s, err := strconv.ParseFloat(strings.TrimSuffix(fieldValue(line, "speed"), "x"), 32); err == nil {
		speed = float32(s)
	}

	var percent float32
	switch {
	case duration > 0:
		percent = float32((elapsedSecs / duration) * 100)
	case totalFrames > 0:
		percent = float32(float64(frame) / float64(totalFrames) * 100)
	}
	if percent > 100 {
		percent = 100
	}

	var eta time.Duration
	if speed > 0 && duration > 0 {
		remainingDuration := duration - elapsedSecs
		if remainingDuration > 0 {
			eta = time.Duration(remainingDuration/float64(speed)) * time.Second
		}
	}

	return &Progress{
		CurrentFrame: frame,
		TotalFrames:  totalFrames,
		Percent:      percent,
		Speed:        speed,
		FPS:          fps,
		ETA:          eta,
		Bitrate:      bitrate,
		ElapsedSecs:  elapsedSecs,
	}
}
