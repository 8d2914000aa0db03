package protocol

// Request is the closed sum of messages a client may send to the relay
// server. It is a sealed interface (an unexported marker method) rather
// than an open interface, so the codec's switch over concrete types can be
// exhaustive — the zero value (Noop) intentionally has no exported
// constructor: attempting to send it is a programming error, matching the
// source's unreachable!() on Noop encode.
type Request interface {
	isRequest()
}

// Response is the closed sum of messages the relay server may send back
// to a client.
type Response interface {
	isResponse()
}

// RequestHandshakeInitiator initiates a Noise handshake, either the
// client's own server-facing handshake or a peer-facing one tunnelled
// inside a RelayPeer exchange.
type RequestHandshakeInitiator struct {
	Kind HandshakeKind
	// Len is the declared handshake payload length. It duplicates
	// len(Buf) (see §9's open question) and is preserved verbatim on
	// re-encode for wire compatibility, but decoding never relies on it.
	Len uint64
	Buf []byte
}

func (RequestHandshakeInitiator) isRequest() {}

// RequestRelayPeer asks the server to forward an opaque message to the
// client identified by PublicKey. The server never inspects Message.
type RequestRelayPeer struct {
	PublicKey []byte
	Message   []byte
}

func (RequestRelayPeer) isRequest() {}

// ResponseError reports a server-side failure for the request that
// provoked it (e.g. relaying to a peer that isn't connected).
type ResponseError struct {
	Code    uint16
	Message string
}

func (ResponseError) isResponse() {}

// ResponseHandshakeResponder answers a RequestHandshakeInitiator.
type ResponseHandshakeResponder struct {
	Kind HandshakeKind
	Len  uint64
	Buf  []byte
}

func (ResponseHandshakeResponder) isResponse() {}

// ResponseRelayPeer delivers a message relayed from another client.
// PublicKey identifies the *sender*, not the original request's target —
// the server swaps it on dispatch (§4.4, testable property 9).
type ResponseRelayPeer struct {
	PublicKey []byte
	Message   []byte
}

func (ResponseRelayPeer) isResponse() {}
