//go:build !linux && !darwin && !freebsd

package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDirectoryWritable verifies that path is an existing directory the
// current process can write to by creating and removing a probe file.
func EnsureDirectoryWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	probe, err := os.CreateTemp(path, ".framepress_probe_*")
	if err != nil {
		return fmt.Errorf("insufficient permissions on %s: %w", path, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(filepath.Clean(name))
}

// GetAvailableSpace is not implemented on this platform and always returns 0.
func GetAvailableSpace(string) uint64 {
	return 0
}
