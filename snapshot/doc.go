// Package snapshot provides consistent, read-only access to in-memory
// book state and durable point-in-time captures of it. Readers enter and
// exit read epochs so snapshots taken alongside matching stay consistent
// without locks; the writer/loader pair persists and rebuilds the book
// across restarts and anchors journal truncation.
package snapshot
