package indexed

import "errors"

var (
	// ErrIndexOverflow is returned when the store has assigned every index an int can hold.
	ErrIndexOverflow = errors.New("indexed: index space exhausted")

	// ErrInvalidState is returned when restoring or decoding a store whose
	// slots do not line up with its next index.
	ErrInvalidState = errors.New("indexed: invalid store state")
)
