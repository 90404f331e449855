package watcher

import (
	"dropwatch/internal/config"
	"dropwatch/internal/fileutil"
	"dropwatch/internal/files"
)

// Strategy is the live detection mechanism.
type Strategy int

const (
	// StrategyNative uses fsnotify events on a directly addressable path.
	StrategyNative Strategy = iota
	// StrategyPoll combines tree change notifications with interval polling.
	StrategyPoll
)

func (s Strategy) String() string {
	if s == StrategyNative {
		return "native"
	}
	return "poll"
}

// Description is a short human-readable summary for status output.
func (s Strategy) Description() string {
	if s == StrategyNative {
		return "native events"
	}
	return "notify + polling"
}

// ChooseStrategy picks the strategy for a target. Handles always poll. Paths
// use native events unless polling is requested, or auto mode finds a
// network or userspace filesystem where inotify misses remote changes.
func ChooseStrategy(mode string, target files.Locator, fsys fileutil.Filesystem) Strategy {
	if target.Kind() != files.KindPath {
		return StrategyPoll
	}
	switch mode {
	case config.WatchModeNative:
		return StrategyNative
	case config.WatchModePoll:
		return StrategyPoll
	default:
		if fsys.Network {
			return StrategyPoll
		}
		return StrategyNative
	}
}
