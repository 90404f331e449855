package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"dropwatch/internal/config"
	"dropwatch/internal/fileutil"
	"dropwatch/internal/watcher"
)

// TargetPath returns the filesystem directory behind the tracking target,
// whether it is addressed by path or by mount handle.
func TargetPath(tracking config.Tracking) (string, error) {
	loc, err := tracking.Target()
	if err != nil {
		return "", err
	}
	if path, ok := loc.Path(); ok {
		return path, nil
	}
	if root, ok := loc.MountRoot(); ok {
		return root, nil
	}
	return "", fmt.Errorf("target %s has no local directory", loc)
}

// CheckTarget verifies that the tracked directory exists and can be listed.
func CheckTarget(tracking config.Tracking) Result {
	const name = "Target directory"

	path, err := TargetPath(tracking)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckWatchMode reports which live strategy the target's filesystem
// supports and fails when native events are forced on a network filesystem.
func CheckWatchMode(cfg *config.Config) Result {
	const name = "Watch mode"

	path, err := TargetPath(cfg.Tracking)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	fsys, err := fileutil.DetectFilesystem(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	if cfg.Watch.Mode == config.WatchModeNative && fsys.Network {
		return Result{Name: name, Detail: fmt.Sprintf(
			"native events requested on %s; changes from other hosts are missed (use mode \"auto\" or \"poll\")", fsys.Name)}
	}
	loc, err := cfg.Tracking.Target()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	strategy := watcher.ChooseStrategy(cfg.Watch.Mode, loc, fsys)
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s on %s (%s)", cfg.Watch.Mode, fsys.Name, strategy.Description())}
}
