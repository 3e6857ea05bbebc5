package ffmpeg

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Command describes one subprocess invocation.
type Command struct {
	Program string
	Args    []string

	// Duration and TotalFrames scale progress reports; zero disables them.
	Duration    float64
	TotalFrames uint64
	Progress    ProgressCallback
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// Output is what a finished subprocess produced.
type Output struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// NullSink returns the platform's null output device, used as the pass 1 target.
func NullSink() string {
	if runtime.GOOS == "windows" {
		return "NUL"
	}
	return "/dev/null"
}

// ArgsBuilder assembles an ffmpeg argument vector with method chaining.
type ArgsBuilder struct {
	args []string
}

// NewArgs starts an argument vector that overwrites outputs and keeps the
// banner out of stderr.
func NewArgs() *ArgsBuilder {
	return &ArgsBuilder{args: []string{"-hide_banner", "-y"}}
}

// FrameRate sets the input frame rate for an image sequence.
func (b *ArgsBuilder) FrameRate(fps float64) *ArgsBuilder {
	b.args = append(b.args, "-framerate", FormatFloat(fps))
	return b
}

// Input adds an input file.
func (b *ArgsBuilder) Input(path string) *ArgsBuilder {
	b.args = append(b.args, "-i", path)
	return b
}

// Filter adds a -vf filter chain; empty chains are skipped.
func (b *ArgsBuilder) Filter(chain *VideoFilterChain) *ArgsBuilder {
	if chain != nil && !chain.IsEmpty() {
		b.args = append(b.args, "-vf", chain.Build())
	}
	return b
}

// VideoCodec sets the video encoder.
func (b *ArgsBuilder) VideoCodec(codec string) *ArgsBuilder {
	b.args = append(b.args, "-c:v", codec)
	return b
}

// VideoBitrate sets a target bitrate in kbps.
func (b *ArgsBuilder) VideoBitrate(kbps int) *ArgsBuilder {
	b.args = append(b.args, "-b:v", fmt.Sprintf("%dk", kbps))
	return b
}

// Preset sets the encoder speed preset.
func (b *ArgsBuilder) Preset(preset string) *ArgsBuilder {
	if preset != "" {
		b.args = append(b.args, "-preset", preset)
	}
	return b
}

// PixelFormat sets the output pixel format.
func (b *ArgsBuilder) PixelFormat(pixFmt string) *ArgsBuilder {
	b.args = append(b.args, "-pix_fmt", pixFmt)
	return b
}

// NoAudio drops audio from the output.
func (b *ArgsBuilder) NoAudio() *ArgsBuilder {
	b.args = append(b.args, "-an")
	return b
}

// Add appends raw arguments.
func (b *ArgsBuilder) Add(args ...string) *ArgsBuilder {
	b.args = append(b.args, args...)
	return b
}

// Output appends the output path and returns the finished vector.
func (b *ArgsBuilder) Output(path string) []string {
	out := make([]string, 0, len(b.args)+1)
	out = append(out, b.args...)
	return append(out, path)
}

// FormatFloat renders a float without trailing zeros ("30", "29.97").
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
