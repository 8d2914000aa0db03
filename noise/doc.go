// Package noise wraps github.com/flynn/noise to provide the two-phase
// Noise state machine described in §4.2 of the specification: a
// HandshakeSession that transitions, at most once, into a TransportSession
// exposing Seal/Open. The phases are modeled as distinct Go types behind
// the State interface rather than a single struct with a mutable flag, so
// Seal and Open are statically unreachable on a session still mid-handshake
// wherever the caller holds the concrete type.
//
// Only the Noise_XX pattern is supported: both sides authenticate with a
// static key exchanged during the handshake itself (unlike IK, neither
// side needs to know the other's static key in advance), which matches how
// this relay's clients meet — through the meeting rendezvous exchanging
// raw public keys, not a pre-shared identity directory.
package noise
