package gateway

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePacketRoundTrip(t *testing.T) {
	payload := []byte("hello framework")
	packet, err := EncodePacket(payload, false)
	require.NoError(t, err)

	decoded, err := DecodePacket(bytes.NewReader(packet))
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestEncodeDecodePacketWithCompression(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 4096)
	packet, err := EncodePacket(payload, true)
	require.NoError(t, err)
	assert.Less(t, len(packet), len(payload))

	decoded, err := DecodePacket(bytes.NewReader(packet))
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestEncodePacketRejectsOversizedPayload(t *testing.T) {
	payload := make([]byte, MaxPacketSize+1)
	_, err := EncodePacket(payload, false)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestDecodePacketRejectsCorruptedBody(t *testing.T) {
	packet, err := EncodePacket([]byte("hello"), false)
	require.NoError(t, err)

	corrupted := append([]byte(nil), packet...)
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err = DecodePacket(bytes.NewReader(corrupted))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecodePacketRejectsTruncatedHeader(t *testing.T) {
	_, err := DecodePacket(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}
