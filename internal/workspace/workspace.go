// Package workspace manages the exclusive scratch directory an encode runs in.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/util"
)

// Layout of files inside the workspace directory.
const (
	DirName        = "framepress"
	LockName       = "framepress.lock"
	FramePattern   = "frame_%05d.png"
	CleanVideoName = "clean_video.mp4"
	AudioName      = "temp_audio.wav"
	PassLogPrefix  = "ffmpeg_passlog"
)

// lockRetryDelay is how often a contended lock is retried.
const lockRetryDelay = 100 * time.Millisecond

// lowSpaceBytes is the free space below which Open warns. Frames are stored
// as PNG, so long sequences need a lot of scratch space.
var lowSpaceBytes uint64 = 2 * util.GiB

// Workspace is an exclusively held directory under a root. Only one
// Workspace per root exists at a time across processes.
type Workspace struct {
	Root string
	Dir  string

	// FreeSpace is the space available on the root's filesystem when the
	// workspace was opened, or 0 when unknown.
	FreeSpace uint64

	lock   *flock.Flock
	logger *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open acquires the lock for root, removes any directory left by an earlier
// run, and creates a fresh one. It waits for a contended lock until ctx is done.
func Open(ctx context.Context, root string, logger *logging.Logger) (*Workspace, error) {
	log := logging.OrGlobal(logger)

	if root == "" {
		root = os.TempDir()
	}
	if err := util.EnsureDirectory(root); err != nil {
		return nil, fperrors.NewWorkspaceError(fmt.Sprintf("cannot create workspace root %s", root), err)
	}
	if err := util.EnsureDirectoryWritable(root); err != nil {
		return nil, fperrors.NewWorkspaceError(fmt.Sprintf("workspace root %s is not writable", root), err)
	}

	free := util.GetAvailableSpace(root)
	if free > 0 && free < lowSpaceBytes {
		log.Warn("Low disk space for workspace", "root", root, "available", util.FormatBytes(free))
	}

	lockPath := filepath.Join(root, LockName)
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fperrors.NewWorkspaceError(fmt.Sprintf("workspace %s is in use by another encode", root), ctx.Err())
		}
		return nil, fperrors.NewWorkspaceError(fmt.Sprintf("acquire lock %s", lockPath), err)
	}
	if !locked {
		return nil, fperrors.NewWorkspaceError(fmt.Sprintf("workspace %s is in use by another encode", root), nil)
	}

	dir := filepath.Join(root, DirName)
	if util.DirectoryExists(dir) {
		log.Debug("Removing stale workspace", "dir", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		_ = lock.Unlock()
		return nil, fperrors.NewWorkspaceError(fmt.Sprintf("remove stale workspace %s", dir), err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fperrors.NewWorkspaceError(fmt.Sprintf("create workspace %s", dir), err)
	}

	log.Debug("Workspace acquired", "dir", dir)
	return &Workspace{Root: root, Dir: dir, FreeSpace: free, lock: lock, logger: logger}, nil
}

// LowOnSpace reports whether the root had less free space than an encode
// is likely to need.
func (w *Workspace) LowOnSpace() bool {
	return w.FreeSpace > 0 && w.FreeSpace < lowSpaceBytes
}

// FramePath returns the path of frame index (0-based) inside dir.
func FramePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf(FramePattern, index))
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// PassLog returns the two-pass statistics prefix.
func (w *Workspace) PassLog() string {
	return w.Path(PassLogPrefix)
}

// Close removes the workspace directory and releases the lock. Later calls
// return the first call's result.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		log := logging.OrGlobal(w.logger)
		if err := os.RemoveAll(w.Dir); err != nil {
			w.closeErr = fperrors.NewWorkspaceError(fmt.Sprintf("remove workspace %s", w.Dir), err)
			log.Warn("Failed to remove workspace", "dir", w.Dir, "error", err)
		}
		if err := w.lock.Unlock(); err != nil {
			log.Warn("Failed to release workspace lock", "path", w.lock.Path(), "error", err)
			if w.closeErr == nil {
				w.closeErr = fperrors.NewWorkspaceError("release workspace lock", err)
			}
		}
		log.Debug("Workspace released", "dir", w.Dir)
	})
	return w.closeErr
}
