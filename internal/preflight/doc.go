// Package preflight provides readiness checks for the directories dropwatch
// depends on.
//
// These checks run in two contexts:
//   - "dropwatch run" logs failed checks before tracking starts. Tracking
//     still starts, since an unreadable target degrades to an empty scan.
//   - The CLI "dropwatch check" command renders every result as a table.
package preflight
