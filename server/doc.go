// Package server implements the relay: it accepts websocket connections,
// performs the server-facing Noise_XX handshake as responder, and
// dispatches RelayPeer frames between connected clients by their static
// public key. It never decodes a RelayPeer's message field — the
// payload, whether a tunnelled peer handshake or a SealedEnvelope, is
// opaque to the server by construction (§8 testable property 7).
package server
