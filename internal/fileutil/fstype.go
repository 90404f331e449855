package fileutil

// Filesystem describes the filesystem holding a directory.
type Filesystem struct {
	Name string
	// Network is true for remote and userspace filesystems where inotify
	// does not see changes made by other hosts.
	Network bool
}

// Unknown is returned when the filesystem type cannot be determined.
var Unknown = Filesystem{Name: "unknown"}
