// Package git synchronizes the content directory with its remote.
//
// A sync snapshots uncommitted files, fast-forwards to the remote branch, lays the
// snapshot back on top, commits it and pushes. When the remote cannot be merged the
// working tree is returned to exactly where it was before the sync started.
//
// The package covers:
//   - Authentication from the environment (token, basic or SSH key)
//   - One-shot Sync that rolls back on any failure after local edits are set aside
//   - A gocron-backed Scheduler for periodic sync in serve mode
package git
