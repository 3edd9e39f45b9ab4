// Package build serialises rebuilds of the output tree.
//
// Every change source (file watcher, CLI, scheduled sync) stamps a request on the
// Orchestrator. Requests contend for one exclusive lock that dev-server readers share;
// a request that acquires the lock after a newer one was stamped aborts without
// emitting, and its changes are carried by the newer request.
package build
