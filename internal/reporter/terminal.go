package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/five82/framepress/internal/util"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu          sync.Mutex
	out         io.Writer
	errOut      io.Writer
	interactive bool
	progress    *progressbar.ProgressBar
	maxPercent  float32
	lastStage   string
	cyan        *color.Color
	green       *color.Color
	yellow      *color.Color
	red         *color.Color
	magenta     *color.Color
	bold        *color.Color
	faint       *color.Color
}

// NewTerminalReporter creates a reporter writing to stdout and stderr. The
// progress bar is only drawn when stderr is a terminal.
func NewTerminalReporter() *TerminalReporter {
	fd := os.Stderr.Fd()
	return NewTerminalReporterWithWriters(os.Stdout, os.Stderr,
		isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

// NewTerminalReporterWithWriters creates a terminal reporter with custom
// writers. interactive enables the progress bar.
func NewTerminalReporterWithWriters(out, errOut io.Writer, interactive bool) *TerminalReporter {
	return &TerminalReporter{
		out:         out,
		errOut:      errOut,
		interactive: interactive,
		cyan:        color.New(color.FgCyan, color.Bold),
		green:       color.New(color.FgGreen),
		yellow:      color.New(color.FgYellow, color.Bold),
		red:         color.New(color.FgRed, color.Bold),
		magenta:     color.New(color.FgMagenta),
		bold:        color.New(color.Bold),
		faint:       color.New(color.Faint),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxPercent = 0
}

func (r *TerminalReporter) println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

func (r *TerminalReporter) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

func (r *TerminalReporter) header(title string) {
	r.println()
	_, _ = r.cyan.Fprintln(r.out, title)
}

// printLabel prints a bold label with fixed width padding followed by a value.
// Width is applied to the plain text before styling to ensure proper alignment.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	r.printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Initialization(summary InitializationSummary) {
	r.header("INPUT")
	r.printLabel(11, "Source:", summary.Source)
	if summary.OutputFile != "" {
		r.printLabel(11, "Output:", summary.OutputFile)
	}
	r.printLabel(11, "Frames:", fmt.Sprintf("%d @ %s fps", summary.FrameCount, formatRate(summary.FrameRate)))
	r.printLabel(11, "Duration:", summary.Duration)
	r.printLabel(11, "Resolution:", summary.Resolution)
	r.printLabel(11, "Audio:", summary.AudioDescription)
}

func (r *TerminalReporter) StageProgress(update StageProgress) {
	r.mu.Lock()
	newStage := r.lastStage != update.Stage
	r.lastStage = update.Stage
	r.mu.Unlock()
	if newStage {
		r.header(strings.ToUpper(update.Stage))
	}
	r.printf("  %s %s\n", r.magenta.Sprint("›"), update.Message)
}

func (r *TerminalReporter) EncodingConfig(summary EncodingConfigSummary) {
	r.header("ENCODING")
	const w = 13
	r.printLabel(w, "Mode:", summary.Mode)
	r.printLabel(w, "Encoder:", summary.Encoder)
	r.printLabel(w, "Preset:", summary.Preset)
	r.printLabel(w, "Quality:", summary.Quality)
	if summary.TargetSize != "" {
		r.printLabel(w, "Target size:", summary.TargetSize)
	}
	r.printLabel(w, "Pixel format:", summary.PixelFormat)
	if summary.AudioCodec != "" {
		r.printLabel(w, "Audio codec:", summary.AudioCodec)
	}
	r.printLabel(w, "Audio:", summary.AudioDescription)
}

func (r *TerminalReporter) EncodingStarted(stage string, totalFrames uint64) {
	r.finishProgress()

	if !r.interactive {
		r.printf("  %s %s (%d frames)\n", r.magenta.Sprint("›"), stage, totalFrames)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(r.errOut),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      fmt.Sprintf("%-10s[", stage),
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) EncodingProgress(progress ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil {
		return
	}

	clamped := min(max(progress.Percent, 0), 100)
	if clamped >= r.maxPercent {
		r.maxPercent = clamped
		_ = r.progress.Set64(int64(clamped))
	}

	desc := fmt.Sprintf("speed %.1fx, fps %.1f, eta %s",
		progress.Speed, progress.FPS, util.FormatDurationFromSecs(int64(progress.ETA.Seconds())))
	r.progress.Describe(desc)
}

func (r *TerminalReporter) ValidationComplete(summary ValidationSummary) {
	r.finishProgress()

	r.header("VALIDATION")
	if summary.Passed {
		r.printf("  %s\n", r.green.Add(color.Bold).Sprint("All checks passed"))
	} else {
		r.printf("  %s\n", r.red.Sprint("Validation failed"))
	}

	maxLen := 0
	for _, step := range summary.Steps {
		maxLen = max(maxLen, len(step.Name))
	}

	for _, step := range summary.Steps {
		status := r.green.Sprint("✓")
		if !step.Passed {
			status = r.red.Sprint("✗")
		}
		paddedName := fmt.Sprintf("%-*s", maxLen, step.Name)
		r.printf("  - %s: %s (%s)\n", paddedName, status, step.Details)
	}
}

func (r *TerminalReporter) EncodingComplete(summary EncodingOutcome) {
	r.finishProgress()

	r.header("RESULTS")
	r.printLabel(8, "Output:", r.bold.Sprint(summary.OutputPath))
	size := util.FormatBytes(summary.EncodedSize)
	if summary.TargetSizeMB > 0 {
		size = fmt.Sprintf("%s (%.1f%% of %s MB target)", size, summary.TargetUsage(), formatRate(summary.TargetSizeMB))
	}
	r.printLabel(8, "Size:", size)
	r.printLabel(8, "Mode:", fmt.Sprintf("%s, %s", summary.Mode, summary.Encoder))
	audio := "none"
	if summary.HasAudio {
		audio = "AAC"
	}
	r.printLabel(8, "Audio:", audio)
	r.printLabel(8, "Time:", util.FormatDurationFromSecs(int64(summary.TotalTime.Seconds())))
}

func (r *TerminalReporter) Warning(message string) {
	r.println()
	_, _ = r.yellow.Fprintf(r.out, "WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	r.finishProgress()

	_, _ = fmt.Fprintln(r.errOut)
	_, _ = r.red.Fprintf(r.errOut, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(r.errOut, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	r.println()
	r.printf("%s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) Verbose(message string) {
	r.printf("  %s\n", r.faint.Sprint(message))
}

// formatRate prints whole numbers without a fractional part.
func formatRate(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}
