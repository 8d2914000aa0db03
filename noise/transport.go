package noise

import (
	flynn "github.com/flynn/noise"

	"github.com/mpc-relay/relay/protocol"
)

// TransportSession is a completed Noise_XX handshake in transport mode.
// Only this type exposes Seal/Open — the two-phase design note in §9.
type TransportSession struct {
	send       *flynn.CipherState
	recv       *flynn.CipherState
	peerStatic []byte
}

// newTransport builds a TransportSession from the cipher states flynn/noise
// hands back on handshake completion. Both sides receive the pair in the
// same order: cs1 protects initiator-to-responder traffic and cs2
// responder-to-initiator traffic, so the responder swaps them to get its
// own send and recv ciphers.
func newTransport(role Role, cs1, cs2 *flynn.CipherState, peerStatic []byte) *TransportSession {
	send, recv := cs1, cs2
	if role == Responder {
		send, recv = cs2, cs1
	}
	return &TransportSession{send: send, recv: recv, peerStatic: append([]byte(nil), peerStatic...)}
}

// IsTransport always reports true for a TransportSession.
func (t *TransportSession) IsTransport() bool { return true }

// PeerStatic returns the peer's static public key learned during the
// handshake.
func (t *TransportSession) PeerStatic() []byte { return t.peerStatic }

// Seal encrypts plaintext, producing len(plaintext)+protocol.TagLen bytes
// (§8 testable property 6).
func (t *TransportSession) Seal(plaintext []byte) ([]byte, error) {
	return t.send.Encrypt(nil, nil, plaintext), nil
}

// Open decrypts ciphertext produced by the peer's Seal. Noise's internal
// nonce counter rejects replayed or reordered ciphertexts (§8 scenario
// S6).
func (t *TransportSession) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < protocol.TagLen {
		return nil, ErrShortCiphertext
	}
	return t.recv.Decrypt(nil, nil, ciphertext)
}
