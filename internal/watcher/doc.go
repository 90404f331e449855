// Package watcher detects files that arrive in the tracked directory after
// the baseline scan.
//
// Two strategies exist. Native watching subscribes to fsnotify events on the
// directory and checks each created or written file. Polling subscribes to
// the tree's change notifications, re-lists the directory after a short
// debounce and also re-lists on a fixed interval in case a notification is
// missed. Either way a candidate is only emitted once its size has been read
// twice, a delay apart, with the same non-zero result.
//
// The watcher keeps an in-memory cache of known names seeded by the tracker.
// A name is added to the cache and the durable store before the callback
// runs, so each name is emitted at most once per session.
package watcher
