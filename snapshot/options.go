package snapshot

import (
	"log/slog"

	"github.com/plus3/fixvec/codec"
)

// Options configures snapshot reading and writing.
type Options struct {
	// Codec encodes values on Write. On Read it is used when its Name matches
	// the codec recorded in the header; otherwise the built-in codec of that
	// name is used.
	Codec codec.Codec

	// Compression applies to Write only; Read takes it from the header.
	Compression Compression

	Logger *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithCodec sets the value codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) {
		o.Codec = c
	}
}

// WithCompression sets the body compression used by Write.
func WithCompression(c Compression) Option {
	return func(o *Options) {
		o.Compression = c
	}
}

// WithLogger sets a logger for debug records about snapshots.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func applyOptions(opts []Option) Options {
	o := Options{
		Compression: None,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}
