// Package validation provides post-encode validation checks.
package validation

import (
	"context"

	"github.com/five82/framepress/internal/ffprobe"
)

// MediaAnalyzer provides media analysis capabilities for validation.
// ffprobe.Prober implements it; tests substitute a fake.
type MediaAnalyzer interface {
	Probe(ctx context.Context, path string) (*ffprobe.MediaInfo, error)
}
