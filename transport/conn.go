package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/mpc-relay/relay/protocol"
)

// ErrClosed is returned by ReadFrame/WriteFrame once the connection has
// been closed.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a framed message channel: each WriteFrame call delivers exactly
// one ReadFrame call's worth of bytes on the other end, mirroring how
// gorilla/websocket already frames messages over its own transport.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
	// RemoteAddr identifies the peer for logging; it is best-effort and
	// may be empty for in-process transports.
	RemoteAddr() string
}

// pipeConn frames an unstructured net.Conn stream (a net.Pipe, or any
// other raw byte stream) with a u32 little-endian length prefix, since
// unlike a websocket a raw net.Conn has no message boundaries of its own.
type pipeConn struct {
	nc net.Conn
}

// NewPipeConn wraps a raw net.Conn (typically one end of a net.Pipe) in
// the length-prefixed framing this package needs. Used by tests and
// in-process integration scenarios in place of a real websocket.
func NewPipeConn(nc net.Conn) Conn {
	return &pipeConn{nc: nc}
}

func (p *pipeConn) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(p.nc, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("transport: read frame length: %w", err)
	}
	size := binary.LittleEndian.Uint32(lenBuf[:])
	if size > protocol.MaxFrameSize {
		return nil, protocol.ErrFrameTooLarge
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(p.nc, frame); err != nil {
		return nil, fmt.Errorf("transport: read frame body: %w", err)
	}
	return frame, nil
}

func (p *pipeConn) WriteFrame(frame []byte) error {
	if len(frame) > protocol.MaxFrameSize {
		return protocol.ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := p.nc.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("transport: write frame length: %w", err)
	}
	if _, err := p.nc.Write(frame); err != nil {
		return fmt.Errorf("transport: write frame body: %w", err)
	}
	return nil
}

func (p *pipeConn) Close() error {
	return p.nc.Close()
}

func (p *pipeConn) RemoteAddr() string {
	if addr := p.nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
