package codec_test

import (
	"testing"

	"github.com/plus3/fixvec/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID   uint64
	Tags []string
}

func TestByName(t *testing.T) {
	for _, name := range codec.Names() {
		c, ok := codec.ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := codec.ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecs(t *testing.T) {
	in := payload{ID: 42, Tags: []string{"a", "b"}}

	for _, c := range []codec.Codec{codec.JSON{}, codec.Gob{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out payload
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}
