// Package notifications delivers tracker events via ntfy.
//
// The ntfy implementation publishes to the topic URL configured under
// [notify] and degrades to a no-op when no topic is set. New-file
// notifications are rate limited; files beyond the limit are counted and
// summarized in the next notification that goes out.
//
// Callers depend only on the Service interface.
package notifications
