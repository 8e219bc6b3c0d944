// Package record stores tree nodes as fixed-size records in a single file.
//
// The file starts with a Header, followed by one record slot per node id and
// the tombstone region. Every ReadNode and WriteNode is one physical I/O and
// is counted; header and tombstone persistence is not.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/hrtree/internal/fs"
	"github.com/hupe1980/hrtree/internal/node"
)

// File is an open store file. It is not safe for concurrent use.
type File struct {
	fsys  fs.FileSystem
	f     fs.File
	path  string
	hdr   Header
	codec Codec

	tombstones []uint32
	ioCount    uint32
	buf        []byte
	unlock     func() error
}

// Create creates a new store file at path and persists hdr with an empty
// tombstone list. It fails with ErrAlreadyExists if path exists.
func Create(fsys fs.FileSystem, path string, hdr Header) (*File, error) {
	if err := hdr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create %s: %w", path, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	unlock, err := lockFile(f)
	if err != nil {
		_ = f.Close()
		_ = fsys.Remove(path)
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	rf := newFile(fsys, f, path, hdr, unlock)
	if err := rf.Save(hdr, nil); err != nil {
		_ = rf.Close()
		_ = fsys.Remove(path)
		return nil, err
	}
	return rf, nil
}

// Open opens an existing store file, reading its header and tombstones.
func Open(fsys fs.FileSystem, path string) (*File, error) {
	f, err := fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	unlock, err := lockFile(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	fail := func(err error) (*File, error) {
		_ = unlock()
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}

	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return fail(fmt.Errorf("read header: %w", err))
	}
	hdr := decodeHeader(buf)
	if err := hdr.Validate(); err != nil {
		return fail(fmt.Errorf("header: %w", err))
	}

	tombstones, err := readTombstones(f, hdr)
	if err != nil {
		return fail(err)
	}

	rf := newFile(fsys, f, path, hdr, unlock)
	rf.tombstones = tombstones
	return rf, nil
}

func newFile(fsys fs.FileSystem, f fs.File, path string, hdr Header, unlock func() error) *File {
	codec := NewCodec(hdr.Dimension, hdr.MaxChildren)
	return &File{
		fsys:   fsys,
		f:      f,
		path:   path,
		hdr:    hdr,
		codec:  codec,
		buf:    make([]byte, codec.Size()),
		unlock: unlock,
	}
}

func readTombstones(f fs.File, hdr Header) ([]uint32, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	off := hdr.TombstoneOffset()
	var countBuf [8]byte
	if _, err := f.ReadAt(countBuf[:], off); err != nil {
		return nil, fmt.Errorf("read tombstone count: %w", err)
	}
	count := binary.LittleEndian.Uint64(countBuf[:])
	if count > uint64(info.Size()-off-8)/4 {
		return nil, fmt.Errorf("tombstone count %d exceeds file size %d", count, info.Size())
	}
	if count == 0 {
		return nil, nil
	}

	buf := make([]byte, count*4)
	if _, err := f.ReadAt(buf, off+8); err != nil {
		return nil, fmt.Errorf("read tombstones: %w", err)
	}
	ids := make([]uint32, count)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return ids, nil
}

// Path returns the file path.
func (rf *File) Path() string { return rf.path }

// Header returns the header as last read or saved.
func (rf *File) Header() Header { return rf.hdr }

// Tombstones returns the tombstone ids read at Open.
func (rf *File) Tombstones() []uint32 { return rf.tombstones }

// IOCount returns the number of record reads and writes since the last ResetIO.
func (rf *File) IOCount() uint32 { return rf.ioCount }

// ResetIO zeroes the I/O counter.
func (rf *File) ResetIO() { rf.ioCount = 0 }

// ReadNode reads the record of node id.
func (rf *File) ReadNode(id uint32) (*node.Node, error) {
	if id == node.NullID {
		return nil, fmt.Errorf("%w: %s: read of null node", ErrCorrupted, rf.path)
	}
	rf.ioCount++

	if _, err := rf.f.ReadAt(rf.buf, rf.hdr.Offset(id)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %s: read node %d: %w", ErrCorrupted, rf.path, id, err)
	}
	n, err := rf.codec.Decode(rf.buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode node %d: %w", ErrCorrupted, rf.path, id, err)
	}
	if n.ID != id {
		return nil, fmt.Errorf("%w: %s: slot %d holds node %d", ErrCorrupted, rf.path, id, n.ID)
	}
	return n, nil
}

// WriteNode writes n into its record slot.
func (rf *File) WriteNode(n *node.Node) error {
	if n.ID == node.NullID {
		return fmt.Errorf("%w: %s: write of null node", ErrCorrupted, rf.path)
	}
	rf.ioCount++

	if err := rf.codec.Encode(n, rf.buf); err != nil {
		return fmt.Errorf("%w: %s: encode node %d: %w", ErrCorrupted, rf.path, n.ID, err)
	}
	if _, err := rf.f.WriteAt(rf.buf, rf.hdr.Offset(n.ID)); err != nil {
		return fmt.Errorf("%w: %s: write node %d: %w", ErrCorrupted, rf.path, n.ID, err)
	}
	return nil
}

// Save writes hdr and the tombstone list. The tombstones land right after
// slot hdr.NextID-1.
func (rf *File) Save(hdr Header, tombstones []uint32) error {
	buf := make([]byte, HeaderSize)
	hdr.encode(buf)
	if _, err := rf.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: %s: write header: %w", ErrCorrupted, rf.path, err)
	}

	tbuf := make([]byte, 8+4*len(tombstones))
	binary.LittleEndian.PutUint64(tbuf, uint64(len(tombstones)))
	for i, id := range tombstones {
		binary.LittleEndian.PutUint32(tbuf[8+4*i:], id)
	}
	if _, err := rf.f.WriteAt(tbuf, hdr.TombstoneOffset()); err != nil {
		return fmt.Errorf("%w: %s: write tombstones: %w", ErrCorrupted, rf.path, err)
	}

	rf.hdr = hdr
	rf.tombstones = append(rf.tombstones[:0], tombstones...)
	return nil
}

// Truncate cuts the file right after the tombstone region of the last Save.
// Used after a rebuild shrinks the node id space.
func (rf *File) Truncate() error {
	size := rf.hdr.TombstoneOffset() + 8 + 4*int64(len(rf.tombstones))
	if err := rf.f.Truncate(size); err != nil {
		return fmt.Errorf("%w: %s: truncate: %w", ErrCorrupted, rf.path, err)
	}
	return nil
}

// Sync flushes the file to stable storage.
func (rf *File) Sync() error {
	if err := rf.f.Sync(); err != nil {
		return fmt.Errorf("%w: %s: sync: %w", ErrCorrupted, rf.path, err)
	}
	return nil
}

// Close releases the lock and closes the file.
func (rf *File) Close() error {
	var errs []error
	if rf.unlock != nil {
		errs = append(errs, rf.unlock())
		rf.unlock = nil
	}
	errs = append(errs, rf.f.Close())
	return errors.Join(errs...)
}
