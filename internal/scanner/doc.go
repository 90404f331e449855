// Package scanner performs the baseline scan that runs before live watching.
//
// A scan lists the target directory once, compares the filtered listing with
// the durable known-file set and classifies every present file as existing or
// incremental. The store is then rewritten to the current listing in a single
// update. Enumeration failures produce an empty result instead of an error so
// the tracker can always release callers waiting on the cold-scan barrier.
package scanner
