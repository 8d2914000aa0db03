package noise

import (
	"crypto/rand"
	"errors"
	"fmt"

	flynn "github.com/flynn/noise"

	"github.com/mpc-relay/relay/internal/logging"
	"github.com/mpc-relay/relay/keys"
)

// Role identifies which side of a handshake a session plays.
type Role uint8

const (
	// Initiator starts the handshake.
	Initiator Role = iota
	// Responder answers a handshake initiation.
	Responder
)

// ErrUnsupportedPattern is returned when a pattern other than Noise_XX is
// requested. The relay's wire protocol only ever negotiates XX (§4.2).
var ErrUnsupportedPattern = errors.New("noise: only the Noise_XX pattern is supported")

// ErrHandshakeComplete indicates Step was called again after the
// handshake already transitioned to Transport.
var ErrHandshakeComplete = errors.New("noise: handshake already complete")

// ErrNotTransportState names §7's NotTransportState error kind. Seal and
// Open are defined only on *TransportSession, so a session still
// mid-handshake cannot reach them, and no code in this module currently
// returns this error.
var ErrNotTransportState = errors.New("noise: seal/open requires a transport session")

// ErrShortCiphertext is returned by Open when the input is too short to
// contain even an empty plaintext plus AEAD tag.
var ErrShortCiphertext = errors.New("noise: ciphertext shorter than tag length")

// State is the sealed tagged variant ProtocolState from §3: exactly one
// of *HandshakeSession or *TransportSession.
type State interface {
	// IsTransport reports whether this state has completed its
	// handshake and may Seal/Open.
	IsTransport() bool
}

// xxMessageOrder is the writer of each of Noise_XX's three handshake
// messages, in order: -> e; <- e, ee, s, es; -> s, se.
var xxMessageOrder = [3]Role{Initiator, Responder, Initiator}

func cipherSuite() flynn.CipherSuite {
	return flynn.NewCipherSuite(flynn.DH25519, flynn.CipherChaChaPoly, flynn.HashSHA256)
}

// HandshakeSession drives one in-progress Noise_XX handshake.
type HandshakeSession struct {
	role     Role
	state    *flynn.HandshakeState
	msgIndex int
}

// IsTransport always reports false for a HandshakeSession.
func (h *HandshakeSession) IsTransport() bool { return false }

// Role reports which side of the exchange this session plays. Callers
// tunnelling handshake bytes through another transport (the relay's
// peer-to-peer handshake) use it to decide whether outbound bytes should
// be wrapped as a request or a response frame: Noise_XX's messages 1 and
// 3 are always written by the initiator, message 2 always by the
// responder, regardless of which message index is in flight.
func (h *HandshakeSession) Role() Role { return h.role }

// BeginInitiator starts a Noise_XX handshake as the initiating side.
// remoteStatic is accepted for interface parity with patterns that need
// the peer's static key in advance, but Noise_XX learns it during the
// exchange itself, so it is ignored here.
func BeginInitiator(pattern string, local *keys.Keypair, remoteStatic []byte) (*HandshakeSession, error) {
	return begin(pattern, local, Initiator)
}

// BeginResponder starts a Noise_XX handshake as the responding side.
func BeginResponder(pattern string, local *keys.Keypair) (*HandshakeSession, error) {
	return begin(pattern, local, Responder)
}

func begin(pattern string, local *keys.Keypair, role Role) (*HandshakeSession, error) {
	if pattern != "" && pattern != xxPatternName {
		return nil, ErrUnsupportedPattern
	}

	logger := logging.For("noise", "begin").
		WithField("role", fmt.Sprintf("%d", role))
	logger.Debug("starting Noise_XX handshake")

	config := flynn.Config{
		CipherSuite:   cipherSuite(),
		Random:        rand.Reader,
		Pattern:       flynn.HandshakeXX,
		Initiator:     role == Initiator,
		StaticKeypair: local.DHKey(),
	}

	state, err := flynn.NewHandshakeState(config)
	if err != nil {
		logger.WithError(err).Error("failed to initialize handshake state")
		return nil, fmt.Errorf("noise: new handshake state: %w", err)
	}

	return &HandshakeSession{role: role, state: state}, nil
}

const xxPatternName = "Noise_XX_25519_ChaChaPoly_SHA256"

// Step processes one round of the handshake: if inbound is non-nil it is
// first read (and must be the next message this role expects to receive);
// if this role still has a message to write at the resulting point in the
// sequence, it is produced and returned as outbound. The returned State is
// the same *HandshakeSession on continuation, or a new *TransportSession
// the instant the Noise_XX exchange completes.
func (h *HandshakeSession) Step(inbound []byte) (State, []byte, error) {
	if h.msgIndex >= len(xxMessageOrder) {
		return nil, nil, ErrHandshakeComplete
	}

	if inbound != nil {
		if xxMessageOrder[h.msgIndex] == h.role {
			return nil, nil, fmt.Errorf("noise: unexpected inbound message at step %d for role %v", h.msgIndex, h.role)
		}
		_, cs1, cs2, err := h.state.ReadMessage(nil, inbound)
		if err != nil {
			return nil, nil, fmt.Errorf("noise: read handshake message: %w", err)
		}
		h.msgIndex++
		if cs1 != nil {
			return newTransport(h.role, cs1, cs2, h.state.PeerStatic()), nil, nil
		}
	}

	if h.msgIndex >= len(xxMessageOrder) || xxMessageOrder[h.msgIndex] != h.role {
		return h, nil, nil
	}

	out, cs1, cs2, err := h.state.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("noise: write handshake message: %w", err)
	}
	h.msgIndex++
	if cs1 != nil {
		return newTransport(h.role, cs1, cs2, h.state.PeerStatic()), out, nil
	}
	return h, out, nil
}

// PeerStatic returns the peer's static public key once the handshake has
// transmitted it. XX only reveals it partway through the exchange, so
// this may return nil before the handshake completes.
func (h *HandshakeSession) PeerStatic() []byte {
	return h.state.PeerStatic()
}
