package compress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRoundTrip(t *testing.T) {
	// Records of a sparse tree file compress well.
	data := bytes.Repeat([]byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 240, 63}, 4096)

	for _, typ := range []Type{None, LZ4, ZSTD, Snappy} {
		t.Run(typ.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, typ)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if typ != None {
				assert.Less(t, buf.Len(), len(data))
			}

			r, err := NewReader(&buf, typ)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestParse(t *testing.T) {
	for _, typ := range []Type{None, LZ4, ZSTD, Snappy} {
		got, err := Parse(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	got, err := Parse("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, ZSTD, got)

	_, err = Parse("brotli")
	assert.Error(t, err)
}

func TestUnknownType(t *testing.T) {
	bad := Type(9)
	assert.False(t, bad.Valid())
	assert.Equal(t, "compression(9)", bad.String())

	_, err := NewWriter(io.Discard, bad)
	assert.Error(t, err)
	_, err = NewReader(bytes.NewReader(nil), bad)
	assert.Error(t, err)
}
