// Package logs reads the daemon log file for the CLI.
//
// Last reads the final lines of a file with bounded memory and Follow streams
// lines appended afterwards, waking on fsnotify events for the file's
// directory so rotation and truncation are picked up.
package logs
