package client

import (
	"encoding/json"
	"fmt"

	"github.com/mpc-relay/relay/internal/logging"
	"github.com/mpc-relay/relay/noise"
	"github.com/mpc-relay/relay/protocol"
)

func (c *Client) handleResponse(resp protocol.Response) {
	logger := logging.For("client", "handleResponse")
	switch m := resp.(type) {
	case protocol.ResponseError:
		c.handleServerError(m)
	case protocol.ResponseRelayPeer:
		c.handlePeerFrame(m.PublicKey, m.Message)
	default:
		logger.WithField("type", fmt.Sprintf("%T", m)).Warn("unexpected response on established session")
	}
}

func (c *Client) handleServerError(e protocol.ResponseError) {
	pk := c.popPendingRelay()
	c.events <- Event{
		Kind:          EventPeerUnavailable,
		PeerPublicKey: pk,
		Err:           fmt.Errorf("client: relay error %d: %s", e.Code, e.Message),
	}
}

// handlePeerFrame processes one RelayPeer delivery: senderPK is the
// peer's public key (already swapped by the server per §4.4), blob is
// the opaque message payload.
func (c *Client) handlePeerFrame(senderPK, blob []byte) {
	logger := logging.For("client", "handlePeerFrame").WithField("peer", logging.KeyPreview(senderPK))

	state, exists := c.peers.get(senderPK)
	if !exists {
		req, err := protocol.DecodeRequest(blob)
		if err != nil {
			logger.WithError(err).Warn("undecodable handshake initiation from unknown peer")
			return
		}
		hsReq, ok := req.(protocol.RequestHandshakeInitiator)
		if !ok || hsReq.Kind != protocol.HandshakePeer {
			logger.Warn("first frame from unknown peer was not a peer handshake initiation")
			return
		}
		hs, err := noise.BeginResponder(c.pattern, c.local)
		if err != nil {
			logger.WithError(err).Error("failed to begin responder handshake")
			return
		}
		c.peers.set(senderPK, hs)
		c.events <- Event{Kind: EventPeerPending, PeerPublicKey: senderPK}
		c.stepPeerHandshake(senderPK, hs, hsReq.Buf)
		return
	}

	if hs, ok := state.(*noise.HandshakeSession); ok {
		inbound, err := decodeHandshakeInner(hs.Role(), blob)
		if err != nil {
			logger.WithError(err).Warn("undecodable peer handshake frame")
			return
		}
		c.stepPeerHandshake(senderPK, hs, inbound)
		return
	}

	ts := state.(*noise.TransportSession)
	c.deliverMessage(senderPK, ts, blob)
}

// decodeHandshakeInner extracts the raw Noise bytes tunnelled inside a
// RelayPeer message field. A session whose local role is Initiator is
// waiting on the responder's message (wrapped as a Response); a
// Responder session is waiting on the initiator's message (wrapped as a
// Request) — see noise.HandshakeSession.Role's doc comment.
func decodeHandshakeInner(role noise.Role, blob []byte) ([]byte, error) {
	if role == noise.Initiator {
		resp, err := protocol.DecodeResponse(blob)
		if err != nil {
			return nil, err
		}
		hsResp, ok := resp.(protocol.ResponseHandshakeResponder)
		if !ok {
			return nil, fmt.Errorf("client: expected HandshakeResponder, got %T", resp)
		}
		return hsResp.Buf, nil
	}

	req, err := protocol.DecodeRequest(blob)
	if err != nil {
		return nil, err
	}
	hsReq, ok := req.(protocol.RequestHandshakeInitiator)
	if !ok {
		return nil, fmt.Errorf("client: expected HandshakeInitiator, got %T", req)
	}
	return hsReq.Buf, nil
}

func (c *Client) stepPeerHandshake(pk []byte, hs *noise.HandshakeSession, inbound []byte) {
	logger := logging.For("client", "stepPeerHandshake").WithField("peer", logging.KeyPreview(pk))

	next, out, err := hs.Step(inbound)
	if err != nil {
		logger.WithError(err).Error("peer handshake failed")
		c.peers.delete(pk)
		c.events <- Event{Kind: EventPeerClosed, PeerPublicKey: pk, Err: err}
		return
	}
	c.peers.set(pk, next)
	c.events <- Event{Kind: EventPeerHandshake, PeerPublicKey: pk}

	if out != nil {
		wrapped, err := encodeHandshakeInner(hs.Role(), out)
		if err != nil {
			logger.WithError(err).Error("failed to encode peer handshake frame")
			return
		}
		c.sendRelay(pk, wrapped, false, true)
	}

	if next.IsTransport() {
		c.events <- Event{Kind: EventPeerReady, PeerPublicKey: pk}
		c.flushQueued(pk, next.(*noise.TransportSession))
	}
}

func encodeHandshakeInner(role noise.Role, buf []byte) ([]byte, error) {
	if role == noise.Initiator {
		return protocol.EncodeRequest(protocol.RequestHandshakeInitiator{
			Kind: protocol.HandshakePeer,
			Len:  uint64(len(buf)),
			Buf:  buf,
		})
	}
	return protocol.EncodeResponse(protocol.ResponseHandshakeResponder{
		Kind: protocol.HandshakePeer,
		Len:  uint64(len(buf)),
		Buf:  buf,
	})
}

func (c *Client) deliverMessage(pk []byte, ts *noise.TransportSession, blob []byte) {
	logger := logging.For("client", "deliverMessage").WithField("peer", logging.KeyPreview(pk))

	env, err := protocol.DecodeEnvelope(blob)
	if err != nil {
		logger.WithError(err).Warn("undecodable sealed envelope")
		return
	}
	plaintext, err := ts.Open(env.Payload)
	if err != nil {
		logger.WithError(err).Warn("failed to open sealed envelope")
		return
	}

	if env.Encoding == protocol.EncodingJSON {
		var value interface{}
		if jsonErr := json.Unmarshal(plaintext, &value); jsonErr == nil {
			c.events <- Event{Kind: EventJSONMessage, PeerPublicKey: pk, JSON: value, Broadcast: env.Broadcast}
			return
		}
		logger.Warn("json-tagged envelope failed to parse, downgrading to raw message")
	}
	c.events <- Event{Kind: EventMessage, PeerPublicKey: pk, Plaintext: plaintext, Broadcast: env.Broadcast}
}

func (c *Client) handleSendRequest(req sendRequest) {
	logger := logging.For("client", "handleSendRequest").WithField("peer", logging.KeyPreview(req.publicKey))

	state, exists := c.peers.get(req.publicKey)
	if !exists {
		hs, err := noise.BeginInitiator(c.pattern, c.local, req.publicKey)
		if err != nil {
			logger.WithError(err).Error("failed to begin initiator handshake")
			return
		}
		c.peers.set(req.publicKey, hs)
		c.events <- Event{Kind: EventPeerPending, PeerPublicKey: req.publicKey}
		c.queuePending(req)
		c.stepPeerHandshake(req.publicKey, hs, nil)
		return
	}

	if ts, ok := state.(*noise.TransportSession); ok {
		c.sealAndSend(req.publicKey, ts, req.plaintext, req.encoding, req.broadcast)
		return
	}

	c.queuePending(req)
}

func (c *Client) queuePending(req sendRequest) {
	q := c.peers.queueFor(req.publicKey)
	select {
	case q <- req:
	default:
		<-q // drop the oldest pending send to make room
		q <- req
		c.events <- Event{Kind: EventSendDropped, PeerPublicKey: req.publicKey, Err: fmt.Errorf("client: pending send queue full")}
	}
}

func (c *Client) flushQueued(pk []byte, ts *noise.TransportSession) {
	for _, req := range c.peers.drainQueue(pk) {
		c.sealAndSend(pk, ts, req.plaintext, req.encoding, req.broadcast)
	}
}

func (c *Client) sealAndSend(pk []byte, ts *noise.TransportSession, plaintext []byte, encoding protocol.Encoding, broadcast bool) {
	logger := logging.For("client", "sealAndSend").WithField("peer", logging.KeyPreview(pk))

	ciphertext, err := ts.Seal(plaintext)
	if err != nil {
		logger.WithError(err).Error("seal failed")
		return
	}
	env := protocol.SealedEnvelope{
		Length:    uint32(len(ciphertext)),
		Encoding:  encoding,
		Payload:   ciphertext,
		Broadcast: broadcast,
	}
	blob, err := protocol.EncodeEnvelope(env)
	if err != nil {
		logger.WithError(err).Error("failed to encode sealed envelope")
		return
	}
	c.sendRelay(pk, blob, broadcast, false)
}

// sendRelay wraps blob in a RelayPeer request and pushes it onto the
// control or data channel for writeLoop to drain. control frames
// (handshake steps) are drained ahead of data frames (§4.3's ordering
// guarantee).
func (c *Client) sendRelay(pk, blob []byte, broadcast, control bool) {
	logger := logging.For("client", "sendRelay")

	req := protocol.RequestRelayPeer{PublicKey: pk, Message: blob}
	encoded, err := protocol.EncodeRequest(req)
	if err != nil {
		logger.WithError(err).Error("failed to encode relay frame")
		return
	}

	c.pushPendingRelay(pk)

	ch := c.dataCh
	if control {
		ch = c.controlCh
	}
	select {
	case ch <- encoded:
	case <-c.closeCh:
	}
}

func (c *Client) pushPendingRelay(pk []byte) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pendingRelay) >= maxPendingRelay {
		c.pendingRelay = c.pendingRelay[1:]
	}
	c.pendingRelay = append(c.pendingRelay, pk)
}

func (c *Client) popPendingRelay() []byte {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pendingRelay) == 0 {
		return nil
	}
	pk := c.pendingRelay[0]
	c.pendingRelay = c.pendingRelay[1:]
	return pk
}
