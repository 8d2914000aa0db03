package protocol

import "fmt"

// Encoding tags the application-layer framing carried above the Noise
// transport. Unknown encodings are treated as raw bytes and surfaced
// unchanged to the application (§9).
type Encoding uint8

const (
	// EncodingRaw marks an envelope payload as opaque application bytes.
	EncodingRaw Encoding = iota
	// EncodingJSON marks an envelope payload as a JSON document; the
	// client event loop attempts to parse it into a JsonMessage event.
	EncodingJSON
)

// SealedEnvelope wraps a peer payload sealed by a Noise transport session.
// It is self-describing — the recipient can allocate buffers before
// decryption — and is itself encoded opaquely inside a RelayPeer frame's
// Message field, so the server never needs to understand it.
type SealedEnvelope struct {
	// Length is the ciphertext length: len(plaintext) + TagLen.
	Length uint32
	// Encoding describes the plaintext framing once opened.
	Encoding Encoding
	// Payload is the sealed ciphertext, exactly Length bytes.
	Payload []byte
	// Broadcast is the sender's fan-out flag, surfaced to the recipient
	// as Event.Broadcast. The server cannot read it (the envelope is
	// opaque to it) and relays every envelope to its single target only.
	Broadcast bool
}

// EncodeEnvelope serializes a SealedEnvelope to the opaque blob carried
// inside a RelayPeer frame's Message field.
func EncodeEnvelope(e SealedEnvelope) ([]byte, error) {
	if uint32(len(e.Payload)) != e.Length {
		return nil, fmt.Errorf("protocol: envelope length %d does not match payload size %d", e.Length, len(e.Payload))
	}
	var buf []byte
	buf = appendUint32(buf, e.Length)
	buf = append(buf, byte(e.Encoding))
	broadcastByte := byte(0)
	if e.Broadcast {
		broadcastByte = 1
	}
	buf = append(buf, broadcastByte)
	buf = append(buf, e.Payload...)
	return buf, nil
}

// DecodeEnvelope parses a blob produced by EncodeEnvelope.
func DecodeEnvelope(data []byte) (SealedEnvelope, error) {
	const headerLen = 4 + 1 + 1
	if len(data) < headerLen {
		return SealedEnvelope{}, fmt.Errorf("protocol: truncated envelope header")
	}
	length := leUint32(data[0:4])
	encoding := Encoding(data[4])
	broadcast := data[5] != 0
	payload := data[headerLen:]
	if uint32(len(payload)) != length {
		return SealedEnvelope{}, fmt.Errorf("protocol: envelope declares length %d, got %d bytes", length, len(payload))
	}
	return SealedEnvelope{
		Length:    length,
		Encoding:  encoding,
		Payload:   payload,
		Broadcast: broadcast,
	}, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
