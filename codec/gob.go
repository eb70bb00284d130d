package codec

import (
	"bytes"
	"encoding/gob"
)

// Gob encodes each value as a self-contained gob stream. Every encoded value
// carries its own type description, which keeps values independently
// decodable at the cost of size.
type Gob struct{}

// Marshal encodes the value with encoding/gob.
func (Gob) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes gob data into v.
func (Gob) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Name returns the unique name of the codec ("gob").
func (Gob) Name() string { return "gob" }
