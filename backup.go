package hrtree

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/hupe1980/hrtree/blobstore"
	"github.com/hupe1980/hrtree/internal/compress"
	"github.com/hupe1980/hrtree/internal/fs"
	"github.com/hupe1980/hrtree/internal/record"
	"github.com/hupe1980/hrtree/internal/resource"
)

// Compression selects the codec of a backup stream.
type Compression = compress.Type

const (
	CompressionNone   = compress.None
	CompressionLZ4    = compress.LZ4
	CompressionZSTD   = compress.ZSTD
	CompressionSnappy = compress.Snappy
)

// BackupOptions configures Backup.
type BackupOptions struct {
	// Compression is the codec of the uploaded stream.
	// Default: CompressionZSTD
	Compression Compression

	// RateLimit caps the read throughput in bytes per second. Zero keeps
	// the store's WithBackupRateLimit setting.
	RateLimit int64
}

const (
	backupMagic     = "HRTB"
	backupVersion   = 1
	backupFrameSize = 20
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// backupFrame precedes the compressed file bytes in every backup blob.
type backupFrame struct {
	compression Compression
	size        uint64
	checksum    uint32
}

func (f backupFrame) encode() []byte {
	buf := make([]byte, backupFrameSize)
	copy(buf, backupMagic)
	buf[4] = backupVersion
	buf[5] = byte(f.compression)
	binary.LittleEndian.PutUint64(buf[8:], f.size)
	binary.LittleEndian.PutUint32(buf[16:], f.checksum)
	return buf
}

func decodeBackupFrame(buf []byte) (backupFrame, error) {
	if !bytes.Equal(buf[:4], []byte(backupMagic)) {
		return backupFrame{}, errors.New("bad magic")
	}
	if buf[4] != backupVersion {
		return backupFrame{}, fmt.Errorf("unsupported version %d", buf[4])
	}
	f := backupFrame{
		compression: Compression(buf[5]),
		size:        binary.LittleEndian.Uint64(buf[8:]),
		checksum:    binary.LittleEndian.Uint32(buf[16:]),
	}
	if !f.compression.Valid() {
		return backupFrame{}, fmt.Errorf("unknown compression %d", buf[5])
	}
	return f, nil
}

// Backup uploads a consistent copy of the store file to bs under name.
// The store is synced and copied to a snapshot file next to it while
// locked; the upload then streams from the snapshot, so other operations
// proceed while it runs. At most WithBackgroundJobs backups run at once.
func (s *Store) Backup(ctx context.Context, bs blobstore.BlobStore, name string, optFns ...func(*BackupOptions)) error {
	opts := BackupOptions{Compression: CompressionZSTD}
	for _, fn := range optFns {
		fn(&opts)
	}

	size, err := s.backup(ctx, bs, name, opts)
	s.logger.LogBackup(ctx, name, size, err)
	return err
}

func (s *Store) backup(ctx context.Context, bs blobstore.BlobStore, name string, opts BackupOptions) (int64, error) {
	if !opts.Compression.Valid() {
		return 0, fmt.Errorf("%w: unknown compression %d", ErrInvalidArgument, opts.Compression)
	}

	if err := s.ctrl.AcquireBackground(ctx); err != nil {
		return 0, err
	}
	defer s.ctrl.ReleaseBackground()

	snap, err := s.snapshot()
	if err != nil {
		return 0, fmt.Errorf("backup %s: %w", name, err)
	}
	defer func() { _ = snap.Close() }()

	frame := backupFrame{
		compression: opts.Compression,
		size:        uint64(snap.size),
		checksum:    snap.checksum,
	}

	ctrl := s.ctrl
	if opts.RateLimit > 0 {
		ctrl = resource.NewController(resource.Config{IOLimitBytesPerSec: opts.RateLimit})
	}

	wb, err := bs.Create(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("backup %s: %w", name, err)
	}
	r := io.NewSectionReader(snap.f, 0, snap.size)
	if err := writeBackup(wb, frame, resource.NewRateLimitedReader(ctx, r, ctrl)); err != nil {
		_ = wb.Abort()
		return 0, fmt.Errorf("backup %s: %w", name, err)
	}
	if err := wb.Close(); err != nil {
		return 0, fmt.Errorf("backup %s: %w", name, err)
	}
	return snap.size, nil
}

// snapshot is a private copy of the store file taken under the store lock.
// Closing it removes the copy.
type snapshot struct {
	fsys     fs.FileSystem
	path     string
	f        fs.File
	size     int64
	checksum uint32
}

func (sn *snapshot) Close() error {
	err := sn.f.Close()
	if rerr := sn.fsys.Remove(sn.path); err == nil {
		err = rerr
	}
	return err
}

// snapshot syncs the store and copies its file to <path>.snap-<n>,
// checksumming the bytes on the way.
func (s *Store) snapshot() (_ *snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.tree.Sync(); err != nil {
		return nil, err
	}

	src, err := s.fsys.OpenFile(s.path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	info, err := src.Stat()
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s.snap-%d", s.path, s.snapSeq.Add(1))
	dst, err := s.fsys.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{fsys: s.fsys, path: path, f: dst, size: info.Size()}
	defer func() {
		if err != nil {
			_ = snap.Close()
		}
	}()

	h := crc32.New(castagnoli)
	n, err := io.Copy(io.MultiWriter(&offsetWriter{w: dst}, h), io.NewSectionReader(src, 0, snap.size))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.path, err)
	}
	if n != snap.size {
		return nil, fmt.Errorf("snapshot %s: copied %d bytes, expected %d", s.path, n, snap.size)
	}
	snap.checksum = h.Sum32()
	return snap, nil
}

func writeBackup(w io.Writer, frame backupFrame, r io.Reader) error {
	if _, err := w.Write(frame.encode()); err != nil {
		return err
	}
	cw, err := compress.NewWriter(w, frame.compression)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cw, r); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

// Restore downloads the backup name from bs into a new store file at path,
// which must not exist. The file is verified against the backup checksum
// and its header is validated; on any failure nothing is left at path.
// Open the restored file with Open.
func Restore(ctx context.Context, bs blobstore.BlobStore, name, path string, opts ...Option) error {
	o := applyOptions(opts)

	size, err := restore(ctx, bs, name, path, o.fileSystem)
	o.logger.LogRestore(ctx, name, path, size, err)
	return err
}

func restore(ctx context.Context, bs blobstore.BlobStore, name, path string, fsys fs.FileSystem) (size int64, err error) {
	if _, err := fsys.Stat(path); err == nil {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	blob, err := bs.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return 0, fmt.Errorf("%w: backup %s", ErrNotFound, name)
		}
		return 0, err
	}
	defer func() { _ = blob.Close() }()

	rc, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	head := make([]byte, backupFrameSize)
	if _, err := io.ReadFull(rc, head); err != nil {
		return 0, fmt.Errorf("%w: backup %s: read frame: %w", ErrCorrupted, name, err)
	}
	frame, err := decodeBackupFrame(head)
	if err != nil {
		return 0, fmt.Errorf("%w: backup %s: %w", ErrCorrupted, name, err)
	}

	dec, err := compress.NewReader(rc, frame.compression)
	if err != nil {
		return 0, fmt.Errorf("%w: backup %s: %w", ErrCorrupted, name, err)
	}
	defer func() { _ = dec.Close() }()

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return 0, err
	}
	closed := false
	defer func() {
		if err != nil {
			if !closed {
				_ = f.Close()
			}
			_ = fsys.Remove(path)
		}
	}()

	h := crc32.New(castagnoli)
	n, err := io.Copy(io.MultiWriter(&offsetWriter{w: f}, h), dec)
	if err != nil {
		return 0, fmt.Errorf("%w: backup %s: %w", ErrCorrupted, name, err)
	}
	if uint64(n) != frame.size {
		return 0, fmt.Errorf("%w: backup %s: restored %d bytes, expected %d", ErrCorrupted, name, n, frame.size)
	}
	if sum := h.Sum32(); sum != frame.checksum {
		return 0, fmt.Errorf("%w: backup %s: checksum %08x, expected %08x", ErrCorrupted, name, sum, frame.checksum)
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	closed = true
	if err := f.Close(); err != nil {
		return 0, err
	}

	// The header must describe a usable store.
	rf, err := record.Open(fsys, path)
	if err != nil {
		return 0, err
	}
	if err := rf.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

// offsetWriter turns an io.WriterAt into a sequential writer.
type offsetWriter struct {
	w   io.WriterAt
	off int64
}

func (o *offsetWriter) Write(p []byte) (int, error) {
	n, err := o.w.WriteAt(p, o.off)
	o.off += int64(n)
	return n, err
}
