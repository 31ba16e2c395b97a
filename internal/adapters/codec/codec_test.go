package codec

import (
	"testing"
	"time"

	"github.com/eleven-am/tabq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type job struct {
	ID       string            `json:"id" codec:"id"`
	Attempts int               `json:"attempts" codec:"attempts"`
	Labels   map[string]string `json:"labels" codec:"labels"`
	Due      time.Time         `json:"due" codec:"due"`
}

func TestCodecs_RoundTrip(t *testing.T) {
	item := job{
		ID:       "job-1",
		Attempts: 3,
		Labels:   map[string]string{"tenant": "acme"},
		Due:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	for _, name := range []string{domain.CodecJSON, domain.CodecMsgpack} {
		t.Run(name, func(t *testing.T) {
			c, err := New[job](name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())

			data, err := c.Encode(item)
			require.NoError(t, err)

			decoded, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, item.ID, decoded.ID)
			assert.Equal(t, item.Attempts, decoded.Attempts)
			assert.Equal(t, item.Labels, decoded.Labels)
			assert.True(t, item.Due.Equal(decoded.Due))
		})
	}
}

func TestCodecs_DecodeFailureIsSerializationError(t *testing.T) {
	for _, name := range []string{domain.CodecJSON, domain.CodecMsgpack} {
		t.Run(name, func(t *testing.T) {
			c, err := New[job](name)
			require.NoError(t, err)

			_, err = c.Decode([]byte{0xc1})
			assert.True(t, domain.IsSerialization(err))
		})
	}
}

func TestJSON_EncodeFailure(t *testing.T) {
	_, err := JSON[func()]{}.Encode(func() {})
	assert.True(t, domain.IsSerialization(err))
}

func TestNew_UnknownCodec(t *testing.T) {
	_, err := New[job]("gob")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	c, err := New[string]("")
	require.NoError(t, err)
	assert.Equal(t, domain.CodecJSON, c.Name())
}
