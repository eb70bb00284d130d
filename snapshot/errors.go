package snapshot

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrBadMagic is returned when the input does not start with a snapshot header.
	ErrBadMagic = errors.New("snapshot: bad magic")

	// ErrUnsupportedVersion is returned for snapshots written in a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported format version")

	// ErrUnknownCompression is returned for an unrecognised compression byte or name.
	ErrUnknownCompression = errors.New("snapshot: unknown compression")

	// ErrCorrupt is returned when the snapshot body is truncated or inconsistent.
	ErrCorrupt = errors.New("snapshot: corrupt data")
)

// UnknownCodecError is returned when a snapshot names a codec that is neither
// built in nor supplied with WithCodec.
type UnknownCodecError struct {
	Name string
}

func (e *UnknownCodecError) Error() string {
	return fmt.Sprintf("snapshot: unknown codec %q", e.Name)
}

// corrupt marks truncation as corruption and wraps everything else.
func corrupt(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s: %w", ErrCorrupt, what, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("snapshot: reading %s: %w", what, err)
}
