package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mpc-relay/relay/internal/logging"
	"github.com/mpc-relay/relay/keys"
	"github.com/mpc-relay/relay/noise"
	"github.com/mpc-relay/relay/protocol"
	"github.com/mpc-relay/relay/transport"
)

// ErrServerIdentityMismatch is returned by Connect when the server's
// Noise static key, learned during the handshake, does not match
// Options.ServerPublicKey.
var ErrServerIdentityMismatch = errors.New("client: server identity does not match pinned public key")

// ErrClientClosed is returned by Send/SendJSON once Close has been
// called.
var ErrClientClosed = errors.New("client: connection closed")

// maxPendingRelay bounds the FIFO used to correlate a ResponseError with
// the RelayPeer send that provoked it. The wire protocol carries no
// correlation id on Error (see DESIGN.md); this implementation
// resolves that by assuming in-order delivery and dropping the oldest
// unresolved entry if the bound is exceeded, rather than growing
// unboundedly when every send succeeds silently.
const maxPendingRelay = 64

// Options configures Connect.
type Options struct {
	// ServerAddr is a websocket URL, e.g. "ws://relay.example:8443/v1/session".
	ServerAddr string
	// ServerPublicKey pins the expected server identity. If empty, any
	// server identity is accepted (no pinning).
	ServerPublicKey []byte
	// Local is this client's static keypair.
	Local *keys.Keypair
	// Pattern overrides the default Noise pattern; empty selects
	// protocol.Pattern.
	Pattern string
}

// Session is the name SPEC_FULL.md's driver-facing contract (§4.7) and
// the meeting/keys wiring use for a connected client; it is the same
// type as Client, aliased so driver implementations can depend on
// *client.Session without importing anything client-internal.
type Session = Client

// Client drives one server-facing Noise session and a registry of
// peer-facing Noise sessions over a single transport.Conn.
type Client struct {
	conn    transport.Conn
	local   *keys.Keypair
	pattern string

	serverState noise.State // only touched by logicLoop after Connect
	peers       *peerRegistry

	controlCh    chan []byte
	dataCh       chan []byte
	inboundCh    chan protocol.Response
	sendRequests chan sendRequest
	events       chan Event

	pendingMu    sync.Mutex
	pendingRelay [][]byte

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// sendRequest is an application Send/SendJSON call queued for the logic
// goroutine.
type sendRequest struct {
	publicKey []byte
	plaintext []byte
	encoding  protocol.Encoding
	broadcast bool
}

// Connect dials the relay server, completes the server-facing Noise_XX
// handshake, and starts the client's event loop goroutines.
func Connect(opts Options) (*Client, error) {
	conn, err := transport.Dial(opts.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	return ConnectWithConn(conn, opts)
}

// ConnectWithConn runs the same handshake and startup sequence as
// Connect over an already-established transport.Conn. Production callers
// use Connect; tests and in-process integration scenarios use this
// directly with a net.Pipe-backed transport.Conn (§8: "an in-memory
// net.Pipe-backed transport satisfies the same interface the websocket
// transport does").
func ConnectWithConn(conn transport.Conn, opts Options) (*Client, error) {
	logger := logging.For("client", "ConnectWithConn").WithField("server", opts.ServerAddr)

	c := &Client{
		conn:         conn,
		local:        opts.Local,
		pattern:      opts.Pattern,
		peers:        newPeerRegistry(),
		controlCh:    make(chan []byte, 32),
		dataCh:       make(chan []byte, 64),
		inboundCh:    make(chan protocol.Response, 32),
		sendRequests: make(chan sendRequest, 64),
		events:       make(chan Event, 64),
		closeCh:      make(chan struct{}),
	}
	c.events <- Event{Kind: EventServerConnecting}

	hs, err := noise.BeginInitiator(c.pattern, c.local, opts.ServerPublicKey)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: begin server handshake: %w", err)
	}

	if err := c.runServerHandshake(hs, opts.ServerPublicKey); err != nil {
		logger.WithError(err).Error("server handshake failed")
		conn.Close()
		return nil, err
	}

	c.wg.Add(3)
	go c.readLoop()
	go c.writeLoop()
	go c.logicLoop()

	logger.Info("client connected")
	return c, nil
}

// runServerHandshake drives the fixed 3-message Noise_XX exchange
// synchronously, before the event loop goroutines start: the client is
// always the initiator of its server session.
func (c *Client) runServerHandshake(hs *noise.HandshakeSession, pinnedServerKey []byte) error {
	state1, out1, err := hs.Step(nil)
	if err != nil {
		return fmt.Errorf("client: server handshake step 1: %w", err)
	}
	if err := c.writeHandshakeFrame(protocol.HandshakeServer, out1); err != nil {
		return err
	}
	c.events <- Event{Kind: EventServerHandshake, Step: 1}

	inbound, err := c.readHandshakeResponse()
	if err != nil {
		return fmt.Errorf("client: server handshake read: %w", err)
	}

	state2, out2, err := state1.(*noise.HandshakeSession).Step(inbound)
	if err != nil {
		return fmt.Errorf("client: server handshake step 2: %w", err)
	}
	if out2 != nil {
		if err := c.writeHandshakeFrame(protocol.HandshakeServer, out2); err != nil {
			return err
		}
	}
	c.events <- Event{Kind: EventServerHandshake, Step: 2}

	if !state2.IsTransport() {
		return fmt.Errorf("client: server handshake did not reach transport after 3 messages")
	}

	transportState := state2.(*noise.TransportSession)
	if len(pinnedServerKey) > 0 && !bytes.Equal(transportState.PeerStatic(), pinnedServerKey) {
		return ErrServerIdentityMismatch
	}
	c.serverState = transportState
	c.events <- Event{Kind: EventServerReady}
	return nil
}

func (c *Client) writeHandshakeFrame(kind protocol.HandshakeKind, buf []byte) error {
	req := protocol.RequestHandshakeInitiator{Kind: kind, Len: uint64(len(buf)), Buf: buf}
	encoded, err := protocol.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("client: encode handshake frame: %w", err)
	}
	if err := c.conn.WriteFrame(encoded); err != nil {
		return fmt.Errorf("client: write handshake frame: %w", err)
	}
	return nil
}

func (c *Client) readHandshakeResponse() ([]byte, error) {
	frame, err := c.conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	resp, err := protocol.DecodeResponse(frame)
	if err != nil {
		return nil, fmt.Errorf("client: decode handshake response: %w", err)
	}
	hsResp, ok := resp.(protocol.ResponseHandshakeResponder)
	if !ok {
		return nil, fmt.Errorf("client: unexpected response %T during server handshake", resp)
	}
	return hsResp.Buf, nil
}

// Events returns the channel of application-visible events. It is closed
// once Close has fully torn down the connection.
func (c *Client) Events() <-chan Event {
	return c.events
}

// PublicKey returns this client's own static public key, the identifier
// peers and the meeting plane know it by.
func (c *Client) PublicKey() []byte {
	return append([]byte(nil), c.local.Public[:]...)
}

// Send seals plaintext for delivery to peer and relays it through the
// server. If no Transport session exists yet for peer, a handshake is
// started (or joined, if already in progress) and the send is buffered
// until it completes.
func (c *Client) Send(peerPublicKey, plaintext []byte, broadcast bool) error {
	return c.enqueueSend(sendRequest{publicKey: peerPublicKey, plaintext: plaintext, encoding: protocol.EncodingRaw, broadcast: broadcast})
}

// SendJSON marshals v and sends it with the envelope's encoding tag set
// so the receiving event loop emits a JsonMessage event.
func (c *Client) SendJSON(peerPublicKey []byte, v interface{}, broadcast bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("client: marshal json payload: %w", err)
	}
	return c.enqueueSend(sendRequest{publicKey: peerPublicKey, plaintext: data, encoding: protocol.EncodingJSON, broadcast: broadcast})
}

func (c *Client) enqueueSend(req sendRequest) error {
	select {
	case c.sendRequests <- req:
		return nil
	case <-c.closeCh:
		return ErrClientClosed
	}
}

// Close tears down the connection: pending goroutines stop, the socket
// closes, and the event channel is closed once drained. Once every loop
// goroutine has exited and can no longer touch c.local, the client's
// static private key is wiped — it drove the server handshake and every
// peer handshake this session started, and none of that can happen again
// after Close.
func (c *Client) Close() error {
	c.triggerClose(nil)
	c.wg.Wait()
	if err := keys.WipeKeypair(c.local); err != nil {
		logging.For("client", "Close").WithError(err).Warn("failed to wipe local keypair")
	}
	close(c.events)
	return nil
}

func (c *Client) triggerClose(err error) {
	c.closeOnce.Do(func() {
		logger := logging.For("client", "triggerClose")
		if err != nil {
			logger.WithError(err).Error("connection closed")
		} else {
			logger.Debug("connection closing")
		}
		close(c.closeCh)
		c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	logger := logging.For("client", "readLoop")
	for {
		frame, err := c.conn.ReadFrame()
		if err != nil {
			c.triggerClose(err)
			return
		}
		resp, err := protocol.DecodeResponse(frame)
		if err != nil {
			logger.WithError(err).Error("undecodable frame from server, closing connection")
			c.triggerClose(err)
			return
		}
		select {
		case c.inboundCh <- resp:
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case frame := <-c.controlCh:
			if err := c.conn.WriteFrame(frame); err != nil {
				c.triggerClose(err)
				return
			}
			continue
		default:
		}

		select {
		case frame := <-c.controlCh:
			if err := c.conn.WriteFrame(frame); err != nil {
				c.triggerClose(err)
				return
			}
		case frame := <-c.dataCh:
			if err := c.conn.WriteFrame(frame); err != nil {
				c.triggerClose(err)
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) logicLoop() {
	defer c.wg.Done()
	for {
		select {
		case resp := <-c.inboundCh:
			c.handleResponse(resp)
		case req := <-c.sendRequests:
			c.handleSendRequest(req)
		case <-c.closeCh:
			return
		}
	}
}
