// Package ffmpeg provides FFmpeg command building and execution.
package ffmpeg

import (
	"fmt"
	"strings"
)

// X265ParamsBuilder builds the colon-separated -x265-params value with method
// chaining.
type X265ParamsBuilder struct {
	params []paramKV
}

type paramKV struct {
	key   string
	value string
}

// NewX265ParamsBuilder creates a new x265 parameters builder.
func NewX265ParamsBuilder() *X265ParamsBuilder {
	return &X265ParamsBuilder{}
}

// WithPass sets the multi-pass stage (1 or 2).
func (b *X265ParamsBuilder) WithPass(pass int) *X265ParamsBuilder {
	b.params = append(b.params, paramKV{"pass", fmt.Sprintf("%d", pass)})
	return b
}

// WithStats sets the rate-control statistics file shared between passes.
func (b *X265ParamsBuilder) WithStats(path string) *X265ParamsBuilder {
	b.params = append(b.params, paramKV{"stats", path})
	return b
}

// Build builds the parameters into a colon-separated string.
func (b *X265ParamsBuilder) Build() string {
	var parts []string
	for _, p := range b.params {
		parts = append(parts, fmt.Sprintf("%s=%s", p.key, p.value))
	}
	return strings.Join(parts, ":")
}
