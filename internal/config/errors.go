// Package config provides configuration types and defaults for framepress.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidPreset indicates an unknown preset name was provided.
	ErrInvalidPreset = errors.New("invalid preset")

	// ErrInvalidCodec indicates an unknown codec name was provided.
	ErrInvalidCodec = errors.New("invalid codec")

	// ErrInvalidStrategy indicates an unknown strategy name was provided.
	ErrInvalidStrategy = errors.New("invalid strategy")

	// ErrInvalidCRF indicates a CRF/CQ value outside the valid 0-51 range.
	ErrInvalidCRF = errors.New("CRF value out of range")

	// ErrInvalidFrameRate indicates a non-positive or excessive frame rate.
	ErrInvalidFrameRate = errors.New("frame rate out of range")

	// ErrInvalidTargetSize indicates a negative, excessive or missing target size.
	ErrInvalidTargetSize = errors.New("target size out of range")

	// ErrInvalidTimeout indicates a negative encode timeout.
	ErrInvalidTimeout = errors.New("invalid encode timeout")

	// ErrInvalidPath indicates an unusable directory or file name setting.
	ErrInvalidPath = errors.New("invalid path setting")

	// ErrUnsupportedFormat indicates a config file with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)
