// Package client implements the relay client's event loop: one
// server-facing Noise session, a registry of peer-facing Noise sessions,
// and the send/receive orchestration that turns application plaintexts
// into SealedEnvelopes carried inside RelayPeer frames.
//
// A Client always establishes its server session as the Noise_XX
// initiator. Peer sessions may be either side: a Client that calls Send
// to a peer it has no session with starts one as initiator; a Client
// that receives a RelayPeer frame for a public key it doesn't recognize
// starts one as responder.
package client
