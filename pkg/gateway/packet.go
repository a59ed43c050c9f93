// Package gateway implements an optional TCP/WebSocket bridge (spec.md
// §1's "companion pieces") that lets an external process exchange
// framed packets with services running inside the framework, by
// translating each packet into a send/recv on a mailbox bound to the
// connection.
//
// The wire framing and checksum are grounded in the original project's
// net/Packet.h and net/checksum.h: a fixed header followed by an
// opaque body, with a checksum guarding against corruption. This
// implementation substitutes xxhash for the original's CRC, since that
// is the checksum library the rest of the retrieved corpus uses.
package gateway

import (
	"bufio"
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// MaxPacketSize bounds a single packet's body, mirroring the
// original's 8K content-size ceiling.
const MaxPacketSize = 8 * 1024

// headerSize is length(4) + codec(1) + checksum(8).
const headerSize = 4 + 1 + 8

// Codec tags whether a packet body is compressed (original's
// net/Compression.h "more"/codec byte).
type Codec uint8

const (
	// CodecNone carries the body verbatim.
	CodecNone Codec = 0
	// CodecFlate compresses the body with compress/flate.
	CodecFlate Codec = 1
)

var (
	// ErrPacketTooLarge is returned when encoding or decoding a body
	// larger than MaxPacketSize.
	ErrPacketTooLarge = errors.New("gateway: packet body exceeds MaxPacketSize")

	// ErrChecksumMismatch is returned when a decoded packet's checksum
	// does not match its body (original's ERR_INVALID_CHECKSUM).
	ErrChecksumMismatch = errors.New("gateway: packet checksum mismatch")
)

// EncodePacket frames payload as [length:4][codec:1][checksum:8][body],
// compressing the body with flate first when compress is true.
func EncodePacket(payload []byte, compress bool) ([]byte, error) {
	if len(payload) > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}

	body := payload
	codec := CodecNone
	if compress {
		compressed, err := deflate(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway: compressing packet: %w", err)
		}
		// Only use the compressed form if it actually helped; tiny
		// payloads often grow under flate's framing overhead.
		if len(compressed) < len(payload) {
			body = compressed
			codec = CodecFlate
		}
	}

	checksum := xxhash.Sum64(body)

	buf := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(body)))
	buf[4] = byte(codec)
	binary.BigEndian.PutUint64(buf[5:13], checksum)
	copy(buf[headerSize:], body)
	return buf, nil
}

// DecodePacket reads one framed packet from r, verifies its checksum,
// and inflates it if its codec byte says it was compressed.
func DecodePacket(r io.Reader) ([]byte, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}
	codec := Codec(header[4])
	wantChecksum := binary.BigEndian.Uint64(header[5:13])

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	if xxhash.Sum64(body) != wantChecksum {
		return nil, ErrChecksumMismatch
	}

	if codec == CodecFlate {
		inflated, err := inflate(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: decompressing packet: %w", err)
		}
		return inflated, nil
	}
	return body, nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}
	return out, nil
}
