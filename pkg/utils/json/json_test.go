package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal(t *testing.T) {
	type payload struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}

	data, err := Marshal(payload{Name: "dcf", Score: 0.91})
	require.NoError(t, err)

	var out payload
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, "dcf", out.Name)
	assert.InDelta(t, 0.91, out.Score, 1e-9)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"n": 7}))

	var out map[string]int
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, 7, out["n"])
}

func TestUnmarshalInvalid(t *testing.T) {
	var out map[string]any
	assert.Error(t, Unmarshal([]byte("{not json"), &out))
}
