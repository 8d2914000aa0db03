package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/mpc-relay/relay/internal/logging"
	"github.com/mpc-relay/relay/noise"
	"github.com/mpc-relay/relay/protocol"
	"github.com/mpc-relay/relay/transport"
)

// outboundQueueSize bounds how many ResponseRelayPeer frames can be
// queued for a slow reader before the server starts dropping the oldest
// one rather than let memory grow unbounded.
const outboundQueueSize = 64

// connState is a connected client's registry entry and per-connection
// state. The server keeps the completed server-facing transport session
// only for the connection's lifetime bookkeeping: per the wire summary
// in §6, RelayPeer frames carry no additional server-transport
// ciphertext layer, so it is never used to seal or open dispatch
// traffic — only the tunnelled peer-to-peer Noise layer does that.
type connState struct {
	publicKey []byte
	transport *noise.TransportSession
	conn      transport.Conn
	outbound  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (c *connState) close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.conn.Close()
	})
}

// enqueue pushes a pre-encoded frame onto the connection's outbound
// queue, dropping the oldest queued frame if the reader has fallen
// behind rather than blocking the dispatching goroutine.
func (c *connState) enqueue(frame []byte) {
	select {
	case c.outbound <- frame:
	default:
		select {
		case <-c.outbound:
		default:
		}
		select {
		case c.outbound <- frame:
		default:
		}
	}
}

// handleConnection drives one accepted connection end to end: the
// server-facing handshake (server always responds), then the dispatch
// read loop, until the connection closes or is torn down by
// Server.Shutdown.
func (s *Server) handleConnection(conn transport.Conn) {
	logger := logging.For("server", "handleConnection").WithField("remote", conn.RemoteAddr())
	defer conn.Close()

	pk, ts, err := s.runHandshake(conn)
	if err != nil {
		logger.WithError(err).Warn("server handshake failed")
		return
	}
	logger = logger.WithField("client", logging.KeyPreview(pk))
	logger.Info("client handshake complete")

	cs := &connState{
		publicKey: pk,
		transport: ts,
		conn:      conn,
		outbound:  make(chan []byte, outboundQueueSize),
		closeCh:   make(chan struct{}),
	}
	s.registry.register(pk, cs)
	defer s.registry.unregister(pk)
	defer cs.close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeConnection(cs)
	}()

	s.readConnection(cs, logger)
	wg.Wait()
}

func (s *Server) writeConnection(cs *connState) {
	for {
		select {
		case frame := <-cs.outbound:
			if err := cs.conn.WriteFrame(frame); err != nil {
				cs.close()
				return
			}
		case <-cs.closeCh:
			return
		}
	}
}

func (s *Server) readConnection(cs *connState, logger *logging.Helper) {
	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()

	frames := make(chan []byte)
	readErrs := make(chan error, 1)
	go func() {
		for {
			frame, err := cs.conn.ReadFrame()
			if err != nil {
				readErrs <- err
				return
			}
			select {
			case frames <- frame:
			case <-cs.closeCh:
				return
			}
		}
	}()

	for {
		select {
		case frame := <-frames:
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(s.idleTimeout)
			s.dispatchFrame(cs, frame, logger)
		case err := <-readErrs:
			logger.WithError(err).Debug("connection read loop ended")
			return
		case <-idle.C:
			logger.Warn("idle timeout exceeded, disconnecting client")
			cs.close()
			return
		case <-cs.closeCh:
			return
		}
	}
}

func (s *Server) dispatchFrame(cs *connState, frame []byte, logger *logging.Helper) {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		logger.WithError(err).Warn("malformed frame, disconnecting client")
		cs.close()
		return
	}

	relay, ok := req.(protocol.RequestRelayPeer)
	if !ok {
		logger.Warn("unexpected request type on established session")
		return
	}

	target, ok := s.registry.lookup(relay.PublicKey)
	if !ok {
		s.replyError(cs, 404, "peer not connected")
		return
	}

	resp := protocol.ResponseRelayPeer{PublicKey: cs.publicKey, Message: relay.Message}
	encoded, err := protocol.EncodeResponse(resp)
	if err != nil {
		logger.WithError(err).Error("failed to encode relayed frame")
		return
	}
	target.enqueue(encoded)
}

func (s *Server) replyError(cs *connState, code uint16, message string) {
	encoded, err := protocol.EncodeResponse(protocol.ResponseError{Code: code, Message: message})
	if err != nil {
		return
	}
	cs.enqueue(encoded)
}

// runHandshake drives the server's responder side of the fixed
// 3-message Noise_XX exchange synchronously before the connection's
// steady-state loops start.
func (s *Server) runHandshake(conn transport.Conn) ([]byte, *noise.TransportSession, error) {
	hs, err := noise.BeginResponder(s.pattern, s.local)
	if err != nil {
		return nil, nil, fmt.Errorf("server: begin handshake: %w", err)
	}

	inbound1, err := readHandshakeRequest(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("server: read handshake step 1: %w", err)
	}

	state1, out1, err := hs.Step(inbound1)
	if err != nil {
		return nil, nil, fmt.Errorf("server: handshake step 1: %w", err)
	}
	if out1 != nil {
		if err := writeHandshakeResponse(conn, out1); err != nil {
			return nil, nil, err
		}
	}

	if state1.IsTransport() {
		ts := state1.(*noise.TransportSession)
		return ts.PeerStatic(), ts, nil
	}

	inbound2, err := readHandshakeRequest(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("server: read handshake step 2: %w", err)
	}

	state2, out2, err := state1.(*noise.HandshakeSession).Step(inbound2)
	if err != nil {
		return nil, nil, fmt.Errorf("server: handshake step 2: %w", err)
	}
	if out2 != nil {
		if err := writeHandshakeResponse(conn, out2); err != nil {
			return nil, nil, err
		}
	}
	if !state2.IsTransport() {
		return nil, nil, fmt.Errorf("server: handshake did not reach transport after 3 messages")
	}

	ts := state2.(*noise.TransportSession)
	return ts.PeerStatic(), ts, nil
}

func readHandshakeRequest(conn transport.Conn) ([]byte, error) {
	frame, err := conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		return nil, fmt.Errorf("decode handshake request: %w", err)
	}
	hsReq, ok := req.(protocol.RequestHandshakeInitiator)
	if !ok || hsReq.Kind != protocol.HandshakeServer {
		return nil, fmt.Errorf("expected server handshake initiator, got %T", req)
	}
	return hsReq.Buf, nil
}

func writeHandshakeResponse(conn transport.Conn, buf []byte) error {
	resp := protocol.ResponseHandshakeResponder{Kind: protocol.HandshakeServer, Len: uint64(len(buf)), Buf: buf}
	encoded, err := protocol.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("server: encode handshake response: %w", err)
	}
	if err := conn.WriteFrame(encoded); err != nil {
		return fmt.Errorf("server: write handshake response: %w", err)
	}
	return nil
}
