// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/sync/truncate capabilities
//   - [FileSystem]: open, read, write, stat, rename and truncate by name
//
// # Implementations
//
//   - [LocalFS]: production implementation using the standard os package
//   - [FaultyFS]: test utility that fails opens, writes, syncs, reads or
//     truncations for files matching a name pattern
//
// Production code uses fs.Default. Tests inject FaultyFS:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("reviews.jsonl", fs.Fault{FailAfterBytes: 0})
//
// Operations take no context.Context: local file operations are not
// interruptible at the syscall level.
package fs
