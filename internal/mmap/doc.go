// Package mmap maps a store file read-only so backups can stream it without
// copying it through the page cache twice.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	r := bytes.NewReader(m.Bytes())
//
// Unix uses mmap(2) and madvise(2) via golang.org/x/sys/unix; Windows uses
// CreateFileMapping/MapViewOfFile and ignores access hints.
package mmap
