package gateway

import "errors"

// ErrEnvelopeTooShort is returned when a packet body is too small to
// contain a valid envelope.
var ErrEnvelopeTooShort = errors.New("gateway: envelope shorter than its own name-length prefix")

// envelope addresses a packet body at the mailbox layer: the first
// byte is the length of the peer name, followed by the name, followed
// by the opaque message payload. Outbound (client to framework) the
// name is the destination; inbound (framework to client) it is the
// observed source, mirroring the mailbox's own (from, payload) pair.
func encodeEnvelope(peer string, payload []byte) []byte {
	out := make([]byte, 1+len(peer)+len(payload))
	out[0] = byte(len(peer))
	copy(out[1:], peer)
	copy(out[1+len(peer):], payload)
	return out
}

func decodeEnvelope(body []byte) (peer string, payload []byte, err error) {
	if len(body) < 1 {
		return "", nil, ErrEnvelopeTooShort
	}
	n := int(body[0])
	if len(body) < 1+n {
		return "", nil, ErrEnvelopeTooShort
	}
	peer = string(body[1 : 1+n])
	payload = body[1+n:]
	return peer, payload, nil
}
