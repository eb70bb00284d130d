package snapshot_test

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/uuid"
	"github.com/plus3/fixvec/codec"
	"github.com/plus3/fixvec/indexed"
	"github.com/plus3/fixvec/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Title string
	Rev   int
}

func sparseStore() *indexed.Store[document] {
	s := indexed.New[document]()
	for i := 0; i < 300; i++ {
		s.Push(document{Title: fmt.Sprintf("doc-%d", i), Rev: i})
	}
	for i := 0; i < 300; i += 4 {
		s.Remove(i)
	}
	s.Remove(299)
	s.Remove(298)
	return s
}

func assertSameSlots[T any](t *testing.T, want, got *indexed.Store[T]) {
	t.Helper()
	require.Equal(t, want.NextIndex(), got.NextIndex())
	require.Equal(t, want.Len(), got.Len())
	for i := -1; i <= want.NextIndex(); i++ {
		w, wok := want.Get(i)
		g, gok := got.Get(i)
		assert.Equal(t, wok, gok, "index %d", i)
		assert.Equal(t, w, g, "index %d", i)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.Gob{}} {
		for _, comp := range []snapshot.Compression{snapshot.None, snapshot.Zstd, snapshot.LZ4} {
			t.Run(c.Name()+"/"+comp.String(), func(t *testing.T) {
				s := sparseStore()

				var buf bytes.Buffer
				written, err := snapshot.Write(&buf, s, snapshot.WithCodec(c), snapshot.WithCompression(comp))
				require.NoError(t, err)
				assert.Equal(t, c.Name(), written.Codec)
				assert.Equal(t, comp, written.Compression)
				assert.Equal(t, uint8(snapshot.FormatVersion), written.Version)
				assert.NotEqual(t, uuid.Nil, written.ID)

				got, read, err := snapshot.Read[document](bytes.NewReader(buf.Bytes()))
				require.NoError(t, err)
				assert.Equal(t, written, read)
				assertSameSlots(t, s, got)
				assert.Equal(t, 300, got.Push(document{Title: "next"}))
			})
		}
	}
}

func TestRoundTripEmpty(t *testing.T) {
	tests := []struct {
		name  string
		store *indexed.Store[int]
	}{
		{"fresh", indexed.New[int]()},
		{"all removed", func() *indexed.Store[int] {
			s := indexed.FromSlice([]int{1, 2, 3})
			s.Clear()
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := snapshot.Write(&buf, tt.store, snapshot.WithCompression(snapshot.Zstd))
			require.NoError(t, err)

			got, _, err := snapshot.Read[int](&buf)
			require.NoError(t, err)
			assertSameSlots(t, tt.store, got)
			assert.True(t, got.IsEmpty())
		})
	}
}

func TestDistinctIDs(t *testing.T) {
	s := indexed.FromSlice([]string{"a"})

	var a, b bytes.Buffer
	ha, err := snapshot.Write(&a, s)
	require.NoError(t, err)
	hb, err := snapshot.Write(&b, s)
	require.NoError(t, err)
	assert.NotEqual(t, ha.ID, hb.ID)
}

func TestReadHeader(t *testing.T) {
	var buf bytes.Buffer
	written, err := snapshot.Write(&buf, indexed.FromSlice([]string{"a", "b"}),
		snapshot.WithCodec(codec.Gob{}), snapshot.WithCompression(snapshot.LZ4))
	require.NoError(t, err)

	h, err := snapshot.ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, written, h)
}

func TestDefaultCodec(t *testing.T) {
	var buf bytes.Buffer
	h, err := snapshot.Write(&buf, indexed.FromSlice([]int{1}))
	require.NoError(t, err)
	assert.Equal(t, codec.Default.Name(), h.Codec)
	assert.Equal(t, snapshot.None, h.Compression)
}

// upperJSON is a custom codec that is not registered by name.
type upperJSON struct{}

func (upperJSON) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	return []byte(strings.ToUpper(string(data))), err
}

func (upperJSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal([]byte(strings.ToLower(string(data))), v)
}

func (upperJSON) Name() string { return "upper-json" }

func TestCustomCodec(t *testing.T) {
	s := indexed.FromSlice([]string{"abc", "def"})

	var buf bytes.Buffer
	_, err := snapshot.Write(&buf, s, snapshot.WithCodec(upperJSON{}))
	require.NoError(t, err)
	data := buf.Bytes()

	_, _, err = snapshot.Read[string](bytes.NewReader(data))
	var unknown *snapshot.UnknownCodecError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "upper-json", unknown.Name)

	got, _, err := snapshot.Read[string](bytes.NewReader(data), snapshot.WithCodec(upperJSON{}))
	require.NoError(t, err)
	assert.True(t, indexed.Equal(s, got))
}

func TestUnknownCompression(t *testing.T) {
	var buf bytes.Buffer
	_, err := snapshot.Write(&buf, indexed.New[int](), snapshot.WithCompression(snapshot.Compression(9)))
	assert.ErrorIs(t, err, snapshot.ErrUnknownCompression)

	_, err = snapshot.ParseCompression("brotli")
	assert.ErrorIs(t, err, snapshot.ErrUnknownCompression)

	for _, c := range []snapshot.Compression{snapshot.None, snapshot.Zstd, snapshot.LZ4} {
		parsed, err := snapshot.ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestBadMagic(t *testing.T) {
	_, _, err := snapshot.Read[int](strings.NewReader("not a snapshot at all"))
	assert.ErrorIs(t, err, snapshot.ErrBadMagic)

	_, _, err = snapshot.Read[int](strings.NewReader(""))
	assert.ErrorIs(t, err, snapshot.ErrBadMagic)
}

func TestUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	_, err := snapshot.Write(&buf, indexed.FromSlice([]int{1}))
	require.NoError(t, err)

	data := buf.Bytes()
	data[4] = snapshot.FormatVersion + 1

	_, _, err = snapshot.Read[int](bytes.NewReader(data))
	assert.ErrorIs(t, err, snapshot.ErrUnsupportedVersion)
}

func TestTruncated(t *testing.T) {
	s := indexed.FromSlice([]string{"alpha", "beta", "gamma"})
	s.Remove(1)

	var buf bytes.Buffer
	_, err := snapshot.Write(&buf, s)
	require.NoError(t, err)
	data := buf.Bytes()

	// every proper prefix past the magic must fail cleanly
	for n := 4; n < len(data); n++ {
		_, _, err := snapshot.Read[string](bytes.NewReader(data[:n]))
		require.Error(t, err, "prefix of %d bytes", n)
		assert.True(t, errors.Is(err, snapshot.ErrCorrupt) || errors.Is(err, snapshot.ErrBadMagic),
			"prefix of %d bytes: %v", n, err)
	}
}

func TestHugeCardinality(t *testing.T) {
	var buf bytes.Buffer
	_, err := snapshot.Write(&buf, indexed.New[int]())
	require.NoError(t, err)
	headerLen := len("FXVS") + 1 + 1 + 1 + len(codec.Default.Name()) + len(uuid.UUID{})
	data := bytes.Clone(buf.Bytes()[:headerLen])

	// a run container claims four billion occupied slots in a few bytes
	occupied := roaring64.New()
	occupied.AddRange(0, 1<<32)
	occupied.RunOptimize()
	bitmap, err := occupied.MarshalBinary()
	require.NoError(t, err)

	data = binary.AppendUvarint(data, 1<<33)
	data = binary.AppendUvarint(data, uint64(len(bitmap)))
	data = append(data, bitmap...)
	data = binary.AppendUvarint(data, occupied.GetCardinality())
	for i := 0; i < 3; i++ {
		data = binary.AppendUvarint(data, 1)
		data = append(data, '7')
	}

	_, _, err = snapshot.Read[int](bytes.NewReader(data))
	require.ErrorIs(t, err, snapshot.ErrCorrupt)
	assert.Contains(t, err.Error(), "index 3")
}

func TestValueDecodeError(t *testing.T) {
	var buf bytes.Buffer
	_, err := snapshot.Write(&buf, indexed.FromSlice([]string{"x"}))
	require.NoError(t, err)

	_, _, err = snapshot.Read[int](&buf)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "index 0")
}

func TestLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var buf bytes.Buffer
	_, err := snapshot.Write(&buf, indexed.FromSlice([]int{1, 2}), snapshot.WithLogger(logger))
	require.NoError(t, err)
	_, _, err = snapshot.Read[int](&buf, snapshot.WithLogger(logger))
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "snapshot written")
	assert.Contains(t, logs.String(), "snapshot read")
	assert.Contains(t, logs.String(), "next_index=2")
}

func ExampleWrite() {
	s := indexed.FromSlice([]string{"a", "b", "c"})
	s.Remove(1)

	var buf bytes.Buffer
	if _, err := snapshot.Write(&buf, s, snapshot.WithCompression(snapshot.Zstd)); err != nil {
		panic(err)
	}

	restored, h, err := snapshot.Read[string](&buf)
	if err != nil {
		panic(err)
	}
	fmt.Println(h.Codec, h.Compression, restored.NextIndex())
	fmt.Print(restored)

	// Output:
	// json zstd 3
	// 0: a
	// 2: c
}
