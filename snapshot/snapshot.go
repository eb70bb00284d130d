// Package snapshot writes and reads a self-describing binary image of an
// indexed.Store.
//
// A snapshot keeps the exact slot layout: the next index, which indices are
// occupied and the value at each of them. Empty slots, including trailing
// ones, decode back to empty slots at the same positions.
//
// Layout:
//
//	header: "FXVS" | version u8 | compression u8 | codec name (uvarint len + bytes) | id [16]
//	body:   next index uvarint
//	        occupied set: uvarint len + roaring64 bitmap
//	        value count uvarint, then per occupied index: uvarint len + codec bytes
//
// The body is passed through the compressor named in the header.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/uuid"
	"github.com/plus3/fixvec/codec"
	"github.com/plus3/fixvec/indexed"
)

// FormatVersion is the snapshot format written by this package.
const FormatVersion = 1

// maxChunk bounds a single length-prefixed chunk read from a snapshot.
const maxChunk = 1 << 30

var magic = [4]byte{'F', 'X', 'V', 'S'}

// Header describes a snapshot.
type Header struct {
	ID          uuid.UUID
	Version     uint8
	Compression Compression
	Codec       string
}

// Write encodes s to w and returns the header it wrote.
func Write[T any](w io.Writer, s *indexed.Store[T], opts ...Option) (Header, error) {
	o := applyOptions(opts)
	c := o.Codec
	if c == nil {
		c = codec.Default
	}
	if !o.Compression.valid() {
		return Header{}, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(o.Compression))
	}

	h := Header{
		ID:          uuid.New(),
		Version:     FormatVersion,
		Compression: o.Compression,
		Codec:       c.Name(),
	}

	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, h); err != nil {
		return Header{}, err
	}

	cw, err := h.Compression.newWriter(bw)
	if err != nil {
		return Header{}, err
	}
	body := bufio.NewWriter(cw)

	occupied := roaring64.New()
	for i := range s.Indices() {
		occupied.Add(uint64(i))
	}
	bitmap, err := occupied.MarshalBinary()
	if err != nil {
		return Header{}, fmt.Errorf("snapshot: encoding occupied set: %w", err)
	}

	if err := writeUvarint(body, uint64(s.NextIndex())); err != nil {
		return Header{}, err
	}
	if err := writeChunk(body, bitmap); err != nil {
		return Header{}, err
	}
	if err := writeUvarint(body, uint64(s.Len())); err != nil {
		return Header{}, err
	}
	for i, v := range s.All() {
		data, err := c.Marshal(v)
		if err != nil {
			return Header{}, fmt.Errorf("snapshot: encoding value at index %d with %s: %w", i, c.Name(), err)
		}
		if err := writeChunk(body, data); err != nil {
			return Header{}, err
		}
	}

	if err := body.Flush(); err != nil {
		return Header{}, err
	}
	if err := cw.Close(); err != nil {
		return Header{}, err
	}
	if err := bw.Flush(); err != nil {
		return Header{}, err
	}

	o.Logger.Debug("snapshot written",
		"id", h.ID,
		"codec", h.Codec,
		"compression", h.Compression,
		"next_index", s.NextIndex(),
		"occupied", s.Len(),
	)
	return h, nil
}

// ReadHeader reads only the header of a snapshot.
func ReadHeader(r io.Reader) (Header, error) {
	return readHeader(bufio.NewReader(r))
}

// Read decodes a snapshot written by Write. The reader may be consumed past
// the end of the snapshot.
func Read[T any](r io.Reader, opts ...Option) (*indexed.Store[T], Header, error) {
	o := applyOptions(opts)

	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, Header{}, err
	}

	c, err := selectCodec(h.Codec, o.Codec)
	if err != nil {
		return nil, h, err
	}

	cr, release, err := h.Compression.newReader(br)
	if err != nil {
		return nil, h, err
	}
	defer release()
	body := bufio.NewReader(cr)

	next, err := binary.ReadUvarint(body)
	if err != nil {
		return nil, h, corrupt("next index", err)
	}
	if next > math.MaxInt {
		return nil, h, fmt.Errorf("%w: next index %d out of range", ErrCorrupt, next)
	}

	bitmap, err := readChunk(body)
	if err != nil {
		return nil, h, corrupt("occupied set", err)
	}
	occupied := roaring64.New()
	if err := occupied.UnmarshalBinary(bitmap); err != nil {
		return nil, h, fmt.Errorf("%w: occupied set: %w", ErrCorrupt, err)
	}
	if !occupied.IsEmpty() && occupied.Maximum() >= next {
		return nil, h, fmt.Errorf("%w: occupied index %d not below next index %d", ErrCorrupt, occupied.Maximum(), next)
	}

	count, err := binary.ReadUvarint(body)
	if err != nil {
		return nil, h, corrupt("value count", err)
	}
	if count != occupied.GetCardinality() {
		return nil, h, fmt.Errorf("%w: %d values for %d occupied slots", ErrCorrupt, count, occupied.GetCardinality())
	}

	// Values are decoded while walking the occupied set. Nothing is sized
	// from its cardinality.
	var decodeErr error
	it := occupied.Iterator()
	s, err := indexed.Restore(int(next), func(yield func(int, T) bool) {
		for it.HasNext() {
			index := it.Next()
			data, err := readChunk(body)
			if err != nil {
				decodeErr = corrupt(fmt.Sprintf("value at index %d", index), err)
				return
			}
			var v T
			if err := c.Unmarshal(data, &v); err != nil {
				decodeErr = fmt.Errorf("snapshot: decoding value at index %d with %s: %w", index, c.Name(), err)
				return
			}
			if !yield(int(index), v) {
				return
			}
		}
	})
	if decodeErr != nil {
		return nil, h, decodeErr
	}
	if err != nil {
		return nil, h, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	o.Logger.Debug("snapshot read",
		"id", h.ID,
		"codec", h.Codec,
		"compression", h.Compression,
		"next_index", s.NextIndex(),
		"occupied", s.Len(),
	)
	return s, h, nil
}

func selectCodec(name string, configured codec.Codec) (codec.Codec, error) {
	if configured != nil && configured.Name() == name {
		return configured, nil
	}
	if c, ok := codec.ByName(name); ok {
		return c, nil
	}
	return nil, &UnknownCodecError{Name: name}
}

func writeHeader(w *bufio.Writer, h Header) error {
	if len(h.Codec) > math.MaxUint8 {
		return fmt.Errorf("snapshot: codec name %q too long", h.Codec)
	}
	w.Write(magic[:])
	w.WriteByte(h.Version)
	w.WriteByte(byte(h.Compression))
	if err := writeChunk(w, []byte(h.Codec)); err != nil {
		return err
	}
	_, err := w.Write(h.ID[:])
	return err
}

func readHeader(r *bufio.Reader) (Header, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Header{}, ErrBadMagic
		}
		return Header{}, err
	}
	if m != magic {
		return Header{}, ErrBadMagic
	}

	var h Header
	version, err := r.ReadByte()
	if err != nil {
		return Header{}, corrupt("version", err)
	}
	if version == 0 || version > FormatVersion {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	h.Version = version

	comp, err := r.ReadByte()
	if err != nil {
		return Header{}, corrupt("compression", err)
	}
	h.Compression = Compression(comp)
	if !h.Compression.valid() {
		return Header{}, fmt.Errorf("%w: %d", ErrUnknownCompression, comp)
	}

	name, err := readChunk(r)
	if err != nil {
		return Header{}, corrupt("codec name", err)
	}
	if len(name) > math.MaxUint8 {
		return Header{}, fmt.Errorf("%w: codec name of %d bytes", ErrCorrupt, len(name))
	}
	h.Codec = string(name)

	if _, err := io.ReadFull(r, h.ID[:]); err != nil {
		return Header{}, corrupt("id", err)
	}
	return h, nil
}

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeChunk(w io.Writer, data []byte) error {
	if err := writeUvarint(w, uint64(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readChunk(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxChunk {
		return nil, fmt.Errorf("%w: chunk of %d bytes", ErrCorrupt, n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
