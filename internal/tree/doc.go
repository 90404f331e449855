// Package tree provides handle-based access to a tracked directory.
//
// A Tree is what the scanner and watcher use when the target is an opaque
// handle rather than a path they may open directly, and what the watcher
// polls when native events are unavailable. Mount is the built-in
// implementation: it serves a local directory through an fs.FS and emulates
// change notifications by probing a cheap directory signature.
package tree
