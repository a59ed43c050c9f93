package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	body := encodeEnvelope("echo", []byte("ping"))
	peer, payload, err := decodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, "echo", peer)
	assert.Equal(t, []byte("ping"), payload)
}

func TestDecodeEnvelopeEmptyPayload(t *testing.T) {
	body := encodeEnvelope("a", nil)
	peer, payload, err := decodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, "a", peer)
	assert.Empty(t, payload)
}

func TestDecodeEnvelopeRejectsTruncatedName(t *testing.T) {
	_, _, err := decodeEnvelope([]byte{5, 'a', 'b'})
	assert.ErrorIs(t, err, ErrEnvelopeTooShort)
}

func TestDecodeEnvelopeRejectsEmptyBody(t *testing.T) {
	_, _, err := decodeEnvelope(nil)
	assert.ErrorIs(t, err, ErrEnvelopeTooShort)
}
