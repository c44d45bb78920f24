// Package memory provides the low-level primitives for memory management
// and safe reclamation: a fixed-capacity slot pool, a lock-free retire
// ring, and global epoch tracking used by the engine and snapshot readers.
//
// The package is dependency-free and forms the foundation for object
// reuse without hot-path allocation.
package memory
