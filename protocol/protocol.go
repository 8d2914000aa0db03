// Package protocol implements the binary wire codec used between a relay
// client and the relay server: little-endian length-prefixed framing, the
// tag-byte message taxonomy, and the SealedEnvelope carried opaquely inside
// relayed peer messages. Nothing in this package performs I/O — Encode and
// Decode are pure functions over byte slices; the suspension points live in
// whatever net.Conn/websocket.Conn the caller reads and writes them with.
package protocol

// MaxFrameSize is the largest frame (tag byte included) the codec will
// encode or decode. Frames larger than this are rejected at decode time
// with ErrFrameTooLarge, and Encode refuses to produce one.
const MaxFrameSize = 32 * 1024

// TagLen is the AEAD authentication tag length appended by a Noise
// transport Seal, fixed by the relay's cipher suite (ChaChaPoly).
const TagLen = 16

// Pattern is the default Noise handshake pattern used for both the
// client-to-server link and client-to-client peer sessions. Callers may
// select a different pattern when generating keypairs, but this constant
// is what every relay component assumes absent an override.
const Pattern = "Noise_XX_25519_ChaChaPoly_SHA256"

// HandshakeKind distinguishes a server-facing handshake from a peer-facing
// one inside HandshakeInitiator/HandshakeResponder frames, so a single
// multiplexed connection can carry both kinds.
type HandshakeKind uint8

const (
	// HandshakeServer identifies the client↔server transport handshake.
	HandshakeServer HandshakeKind = 1
	// HandshakePeer identifies a client↔client handshake tunnelled
	// through the server's RelayPeer channel.
	HandshakePeer HandshakeKind = 2
)

func (k HandshakeKind) String() string {
	switch k {
	case HandshakeServer:
		return "server"
	case HandshakePeer:
		return "peer"
	default:
		return "unknown"
	}
}

// wire tags, one byte, leading every frame.
const (
	tagNoop                = 0
	tagError               = 1
	tagHandshakeInitiator  = 2
	tagHandshakeResponder  = 3
	tagRelayPeer           = 4
)
