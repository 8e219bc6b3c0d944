package record

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hrtree/internal/fs"
	"github.com/hupe1980/hrtree/internal/geom"
	"github.com/hupe1980/hrtree/internal/node"
)

func testHeader() Header {
	return Header{
		Dimension:      2,
		NextID:         1,
		EraseThreshold: 10,
		CacheCapacity:  8,
		MinChildren:    2,
		MaxChildren:    4,
	}
}

func TestHeader_Layout(t *testing.T) {
	h := testHeader()
	// 2*2*8 + 2*4 + 4*4
	assert.Equal(t, int64(56), h.RecordSize())
	assert.Equal(t, int64(HeaderSize), h.Offset(1))
	assert.Equal(t, int64(HeaderSize+2*56), h.Offset(3))

	h.NextID = 5
	assert.Equal(t, int64(HeaderSize+5*56), h.TombstoneOffset())

	buf := make([]byte, HeaderSize)
	h.encode(buf)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[0:]))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf[8:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[24:]))
	assert.Equal(t, h, decodeHeader(buf))
}

func TestHeader_Validate(t *testing.T) {
	require.NoError(t, testHeader().Validate())

	bad := []func(*Header){
		func(h *Header) { h.Dimension = 0 },
		func(h *Header) { h.MaxChildren = 1 },
		func(h *Header) { h.MinChildren = 0 },
		func(h *Header) { h.MinChildren = 5 },
		func(h *Header) { h.CacheCapacity = 0 },
		func(h *Header) { h.NullID = 7 },
		func(h *Header) { h.NextID = 0 },
		func(h *Header) { h.RootID = 1 },
	}
	for i, mutate := range bad {
		h := testHeader()
		mutate(&h)
		assert.Error(t, h.Validate(), "case %d", i)
	}
}

func TestCodec_DataAndInternalNodes(t *testing.T) {
	c := NewCodec(2, 4)
	buf := make([]byte, c.Size())

	leaf := node.NewData(3, 42, geom.New([]float64{1, 2}, []float64{0.5, 0}))
	require.NoError(t, c.Encode(leaf, buf))
	got, err := c.Decode(buf)
	require.NoError(t, err)
	assert.True(t, got.IsData())
	assert.Equal(t, uint32(42), got.DataID)
	assert.Equal(t, leaf.Rect, got.Rect)

	inner := node.NewInternal(7, geom.New([]float64{0, 0}, []float64{3, 3}), 1, 2, 3)
	require.NoError(t, c.Encode(inner, buf))
	got, err = c.Decode(buf)
	require.NoError(t, err)
	assert.False(t, got.IsData())
	assert.Equal(t, []uint32{1, 2, 3}, got.Children)
	assert.Zero(t, got.DataID)
}

func TestCodec_ExternalIDZeroIsData(t *testing.T) {
	c := NewCodec(1, 2)
	buf := make([]byte, c.Size())

	require.NoError(t, c.Encode(node.NewData(1, 0, geom.Point([]float64{0})), buf))
	got, err := c.Decode(buf)
	require.NoError(t, err)
	assert.True(t, got.IsData())
	assert.Zero(t, got.DataID)
}

func TestCodec_Rejects(t *testing.T) {
	c := NewCodec(1, 2)
	buf := make([]byte, c.Size())

	tooMany := node.NewInternal(1, geom.Point([]float64{0}), 2, 3, 4)
	assert.Error(t, c.Encode(tooMany, buf))

	wrongDim := node.NewData(1, 1, geom.Point([]float64{0, 0}))
	assert.Error(t, c.Encode(wrongDim, buf))

	_, err := c.Decode(buf[:3])
	assert.Error(t, err)

	require.NoError(t, c.Encode(node.NewData(1, 1, geom.Point([]float64{0})), buf))
	binary.LittleEndian.PutUint64(buf[12:], 0xbff0000000000000) // extent -1.0
	_, err = c.Decode(buf)
	assert.Error(t, err)
}

func TestFile_CreateWriteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")

	rf, err := Create(fs.Default, path, testHeader())
	require.NoError(t, err)

	leaf := node.NewData(1, 9, geom.Point([]float64{1, 1}))
	root := node.NewInternal(2, leaf.Rect.Clone(), 1)
	require.NoError(t, rf.WriteNode(leaf))
	require.NoError(t, rf.WriteNode(root))
	assert.Equal(t, uint32(2), rf.IOCount())

	hdr := rf.Header()
	hdr.RootID = 2
	hdr.NextID = 3
	require.NoError(t, rf.Save(hdr, []uint32{9, 11}))
	assert.Equal(t, uint32(2), rf.IOCount(), "header writes are not record I/O")
	require.NoError(t, rf.Close())

	rf, err = Open(fs.Default, path)
	require.NoError(t, err)
	defer rf.Close()

	assert.Equal(t, hdr, rf.Header())
	assert.Equal(t, []uint32{9, 11}, rf.Tombstones())

	got, err := rf.ReadNode(2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, got.Children)
	assert.Equal(t, uint32(1), rf.IOCount())

	rf.ResetIO()
	assert.Zero(t, rf.IOCount())
}

func TestFile_CreateExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Create(fs.Default, path, testHeader())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestFile_OpenMissing(t *testing.T) {
	_, err := Open(fs.Default, filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFile_OpenGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("not a tree"), 0o644))

	_, err := Open(fs.Default, path)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFile_ExclusiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	rf, err := Create(fs.Default, path, testHeader())
	require.NoError(t, err)

	_, err = Open(fs.Default, path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, rf.Close())
	rf, err = Open(fs.Default, path)
	require.NoError(t, err)
	require.NoError(t, rf.Close())
}

func TestFile_ReadUnwrittenSlot(t *testing.T) {
	rf, err := Create(fs.Default, filepath.Join(t.TempDir(), "tree.db"), testHeader())
	require.NoError(t, err)
	defer rf.Close()

	_, err = rf.ReadNode(40)
	assert.ErrorIs(t, err, ErrCorrupted)
	assert.Equal(t, uint32(1), rf.IOCount())
}

func TestFile_SlotIDMismatch(t *testing.T) {
	rf, err := Create(fs.Default, filepath.Join(t.TempDir(), "tree.db"), testHeader())
	require.NoError(t, err)
	defer rf.Close()

	// A record claiming id 5 stored in slot 1.
	buf := make([]byte, rf.codec.Size())
	require.NoError(t, rf.codec.Encode(node.NewData(5, 1, geom.Point([]float64{0, 0})), buf))
	_, err = rf.f.WriteAt(buf, rf.hdr.Offset(1))
	require.NoError(t, err)

	_, err = rf.ReadNode(1)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFile_InjectedFaults(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("broken", fs.Fault{FailAfterBytes: HeaderSize + 8})

	rf, err := Create(ffs, filepath.Join(t.TempDir(), "broken.db"), testHeader())
	require.NoError(t, err)
	defer rf.Close()

	err = rf.WriteNode(node.NewData(1, 1, geom.Point([]float64{0, 0})))
	assert.ErrorIs(t, err, ErrCorrupted)
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestFile_TruncateAfterShrink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	rf, err := Create(fs.Default, path, testHeader())
	require.NoError(t, err)
	defer rf.Close()

	hdr := rf.Header()
	for id := uint32(1); id <= 4; id++ {
		require.NoError(t, rf.WriteNode(node.NewData(id, id, geom.Point([]float64{0, 0}))))
	}
	hdr.NextID = 5
	require.NoError(t, rf.Save(hdr, nil))

	hdr.NextID = 2
	require.NoError(t, rf.Save(hdr, nil))
	require.NoError(t, rf.Truncate())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, hdr.TombstoneOffset()+8, info.Size())
}
