// Package tracker is the consumer-facing façade of the change-tracking
// engine.
//
// A Tracker owns one session at a time. Start runs the baseline scan, caches
// the existing files, queues the incremental ones and then starts the live
// watcher feeding the same queue. Callers that run Start in the background
// use AwaitColdScanComplete to wait for the baseline, which is released on
// every exit path of Start, including failures.
//
// The incremental queue is a bounded channel. Producers never block: when the
// buffer is full the record is dropped, logged and counted, and the file is
// picked up again by the next full rescan.
package tracker
