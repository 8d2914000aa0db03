package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ErrMessageKind indicates an unrecognized or out-of-context tag byte.
// Decoding a Request only accepts the tags that are valid requests
// (HandshakeInitiator, RelayPeer); decoding a Response only accepts the
// tags that are valid responses (Error, HandshakeResponder, RelayPeer).
// Noop is never a valid tag to decode in either direction.
type ErrMessageKind struct{ Tag byte }

func (e ErrMessageKind) Error() string {
	return fmt.Sprintf("protocol: unrecognized message tag %d", e.Tag)
}

// ErrFrameTooLarge indicates the encoded frame, or a length prefix inside
// it, exceeds MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("protocol: frame exceeds maximum size of %d bytes", MaxFrameSize)

// EncodeRequest serializes a Request to its wire form.
func EncodeRequest(msg Request) ([]byte, error) {
	var buf bytes.Buffer
	switch m := msg.(type) {
	case RequestHandshakeInitiator:
		buf.WriteByte(tagHandshakeInitiator)
		buf.WriteByte(byte(m.Kind))
		writeUint64(&buf, m.Len)
		if err := writeBytes(&buf, m.Buf); err != nil {
			return nil, err
		}
	case RequestRelayPeer:
		buf.WriteByte(tagRelayPeer)
		if err := writeBytes(&buf, m.PublicKey); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, m.Message); err != nil {
			return nil, err
		}
	default:
		panic("protocol: attempted to encode an unhandled or Noop request")
	}
	if buf.Len() > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return buf.Bytes(), nil
}

// DecodeRequest parses a wire-encoded Request.
func DecodeRequest(data []byte) (Request, error) {
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	r := bytes.NewReader(data)
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("protocol: decode request: %w", err)
	}

	switch tag {
	case tagHandshakeInitiator:
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("protocol: decode handshake initiator: %w", err)
		}
		length, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode handshake initiator: %w", err)
		}
		buf, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode handshake initiator: %w", err)
		}
		return RequestHandshakeInitiator{Kind: HandshakeKind(kindByte), Len: length, Buf: buf}, nil
	case tagRelayPeer:
		publicKey, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode relay peer: %w", err)
		}
		message, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode relay peer: %w", err)
		}
		return RequestRelayPeer{PublicKey: publicKey, Message: message}, nil
	default:
		return nil, ErrMessageKind{Tag: tag}
	}
}

// EncodeResponse serializes a Response to its wire form.
func EncodeResponse(msg Response) ([]byte, error) {
	var buf bytes.Buffer
	switch m := msg.(type) {
	case ResponseError:
		buf.WriteByte(tagError)
		writeUint16(&buf, m.Code)
		if err := writeString(&buf, m.Message); err != nil {
			return nil, err
		}
	case ResponseHandshakeResponder:
		buf.WriteByte(tagHandshakeResponder)
		buf.WriteByte(byte(m.Kind))
		writeUint64(&buf, m.Len)
		if err := writeBytes(&buf, m.Buf); err != nil {
			return nil, err
		}
	case ResponseRelayPeer:
		buf.WriteByte(tagRelayPeer)
		if err := writeBytes(&buf, m.PublicKey); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, m.Message); err != nil {
			return nil, err
		}
	default:
		panic("protocol: attempted to encode an unhandled or Noop response")
	}
	if buf.Len() > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return buf.Bytes(), nil
}

// DecodeResponse parses a wire-encoded Response.
func DecodeResponse(data []byte) (Response, error) {
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	r := bytes.NewReader(data)
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("protocol: decode response: %w", err)
	}

	switch tag {
	case tagError:
		code, err := readUint16(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode error response: %w", err)
		}
		message, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode error response: %w", err)
		}
		return ResponseError{Code: code, Message: message}, nil
	case tagHandshakeResponder:
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("protocol: decode handshake responder: %w", err)
		}
		length, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode handshake responder: %w", err)
		}
		buf, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode handshake responder: %w", err)
		}
		return ResponseHandshakeResponder{Kind: HandshakeKind(kindByte), Len: length, Buf: buf}, nil
	case tagRelayPeer:
		publicKey, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode relay peer: %w", err)
		}
		message, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode relay peer: %w", err)
		}
		return ResponseRelayPeer{PublicKey: publicKey, Message: message}, nil
	default:
		return nil, ErrMessageKind{Tag: tag}
	}
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	return writeBytes(buf, []byte(s))
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	size, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("protocol: truncated frame: %w", err)
	}
	return buf, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
