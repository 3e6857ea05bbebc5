package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OutputTimestampLayout is the second-granularity stamp used in output names.
const OutputTimestampLayout = "20060102-150405"

// OutputFilename returns "<prefix>_<YYYYMMDD-HHMMSS>.mp4" for t.
func OutputFilename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.mp4", prefix, t.Format(OutputTimestampLayout))
}

// ResolveOutputPath returns a path in outputDir for a new encode started at t.
// Two invocations within the same second would share a name, so when the
// timestamped name is already taken a short random suffix is appended.
func ResolveOutputPath(outputDir, prefix string, t time.Time) string {
	path := filepath.Join(outputDir, OutputFilename(prefix, t))
	for FileExists(path) {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		path = filepath.Join(outputDir, fmt.Sprintf("%s_%s_%s.mp4", prefix, t.Format(OutputTimestampLayout), suffix))
	}
	return path
}
