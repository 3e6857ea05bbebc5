// Package encode resolves encode parameters and runs the two-pass and
// single-pass ffmpeg pipelines against the clean intermediate source.
package encode

import (
	"fmt"

	"github.com/five82/framepress/internal/config"
)

// Mode is the encode pipeline an invocation runs.
type Mode int

const (
	// ModeQuality is a single CPU pass at constant rate factor.
	ModeQuality Mode = iota
	// ModeTargetSize is a two-pass average-bitrate encode sized to a budget.
	ModeTargetSize
	// ModeGPU is a single NVENC pass at constant quality.
	ModeGPU
)

func (m Mode) String() string {
	switch m {
	case ModeQuality:
		return "quality"
	case ModeTargetSize:
		return "target-size"
	case ModeGPU:
		return "gpu"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// SinglePass reports whether the mode encodes in one pass.
func (m Mode) SinglePass() bool {
	return m != ModeTargetSize
}

// ModeRequest carries the inputs mode resolution depends on.
type ModeRequest struct {
	Strategy     config.Strategy
	TargetSizeMB float64
	Codec        config.Codec
	CRF          int
}

// Resolved is the immutable parameter set an encode runs with.
// VideoBitrateKbps is only meaningful for ModeTargetSize.
type Resolved struct {
	Mode             Mode
	Codec            config.Codec
	RequestedCodec   config.Codec
	CRF              int
	VideoBitrateKbps int
	Corrected        bool
}

// Resolve picks the mode and a codec compatible with it. A codec from the
// wrong family is replaced and a warning returned. Resolve never fails, and
// resolving its own output again changes nothing.
func Resolve(req ModeRequest) (Resolved, []string) {
	var warnings []string

	var mode Mode
	switch {
	case req.Strategy == config.StrategyGPU:
		mode = ModeGPU
	case req.Strategy == config.StrategyCRF:
		mode = ModeQuality
	case req.TargetSizeMB > 0:
		mode = ModeTargetSize
	default:
		if req.Strategy == config.StrategyTwoPass {
			warnings = append(warnings, "two-pass strategy without a target size, encoding at constant quality")
		}
		mode = ModeQuality
	}

	codec := req.Codec
	if codec == "" {
		codec = config.DefaultCPUCodec
		if mode == ModeGPU {
			codec = config.DefaultGPUCodec
		}
	}

	r := Resolved{Mode: mode, Codec: codec, RequestedCodec: req.Codec, CRF: req.CRF}
	switch {
	case mode == ModeGPU && !codec.IsGPU():
		r.Codec = config.DefaultGPUCodec
	case mode != ModeGPU && codec.IsGPU():
		r.Codec = config.DefaultCPUCodec
	}
	if req.Codec != "" && r.Codec != req.Codec {
		r.Corrected = true
		warnings = append(warnings, fmt.Sprintf("%s mode cannot use codec %s, using %s", mode, req.Codec, r.Codec))
	}

	return r, warnings
}

// Request returns the ModeRequest that resolves back to r.
func (r Resolved) Request(targetSizeMB float64) ModeRequest {
	req := ModeRequest{Strategy: config.StrategyCRF, TargetSizeMB: targetSizeMB, Codec: r.Codec, CRF: r.CRF}
	switch r.Mode {
	case ModeGPU:
		req.Strategy = config.StrategyGPU
	case ModeTargetSize:
		req.Strategy = config.StrategyTwoPass
	}
	return req
}
