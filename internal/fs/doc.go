// Package fs provides the filesystem abstraction the record store runs on.
//
//   - [File]: an open file with positional read/write, sync and truncate
//   - [FileSystem]: open, remove, rename and stat
//
// Production code uses [Default] ([LocalFS]). Tests inject [FaultyFS] to
// simulate failing reads and writes, which the store must surface as a
// corrupted-store error:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("index.hrt", fs.Fault{FailAfterBytes: 1024})
//
// The package has no context.Context parameters. Local file operations are not
// interruptible at the syscall level; remote storage goes through blobstore.
package fs
