// Package relay implements an end-to-end encrypted relay service and
// client library for peer messaging in multi-party computation (MPC) /
// threshold signature (TSS) sessions.
//
// The relay server is a store-and-forward bus: it never observes
// plaintext peer-to-peer payloads. Confidentiality comes from a Noise
// handshake between every pair of endpoints — client-to-server for the
// transport session, client-to-client for relayed application payloads.
// A lightweight meeting rendezvous exchanges public keys between
// participants before either handshake begins, and an external
// KeyShareDriver collaborator (see package driver) drives the actual
// threshold cryptography over the resulting peer sessions.
//
// This file re-exports the user-visible operations named in the design
// document's external-interfaces section as a single convenient surface;
// every operation is independently usable from its own package
// (client, server, meeting, driver, keys) without importing this one.
//
// Example:
//
//	pem, err := relay.GenerateKeypair("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	local, err := keys.DecodePEM(pem)
//
//	c, err := relay.Connect(relay.Options{ServerAddr: "ws://relay.example:8443/v1/session", Local: local})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
package relay

import (
	"context"

	"github.com/mpc-relay/relay/client"
	"github.com/mpc-relay/relay/driver"
	"github.com/mpc-relay/relay/keys"
	"github.com/mpc-relay/relay/meeting"
)

// Options is an alias for client.Options, the configuration accepted by
// Connect.
type Options = client.Options

// Client is an alias for client.Client, the connection handle returned
// by Connect.
type Client = client.Client

// Event is an alias for client.Event, the union delivered on a Client's
// Events channel.
type Event = client.Event

// Connect dials a relay server and completes the server-facing Noise
// handshake. See client.Connect.
func Connect(opts Options) (*Client, error) {
	return client.Connect(opts)
}

// GenerateKeypair creates a new Curve25519 keypair for pattern (empty
// selects the default Noise_XX_25519_ChaChaPoly_SHA256 pattern) and
// renders it as PEM. See keys.GenerateKeypair.
func GenerateKeypair(pattern string) ([]byte, error) {
	return keys.GenerateKeypair(pattern)
}

// CreateMeeting registers a new public-key rendezvous expecting exactly
// identifiers to submit a key before initiator (and everyone else) can
// proceed. See meeting.Store.Create.
func CreateMeeting(store *meeting.Store, identifiers []meeting.UserId, initiator meeting.UserId) (meeting.MeetingId, error) {
	return store.Create(identifiers, initiator)
}

// JoinMeeting submits this participant's public key to meetingID and
// blocks until every expected participant has joined, ctx is canceled, or
// the meeting times out. See meeting.Store.Join.
func JoinMeeting(ctx context.Context, store *meeting.Store, options meeting.Options, meetingID meeting.MeetingId, userID *meeting.UserId) ([][]byte, error) {
	return store.Join(ctx, options, meetingID, userID)
}

// Keygen runs a KeyShareDriver's keygen ceremony over sess with
// participants. See driver.KeyShareDriver.
func Keygen(ctx context.Context, d driver.KeyShareDriver, sess *client.Session, participants [][]byte) (driver.KeyShare, error) {
	return d.Keygen(ctx, sess, participants)
}

// Sign runs a KeyShareDriver's signing ceremony over sess using share.
// See driver.KeyShareDriver.
func Sign(ctx context.Context, d driver.KeyShareDriver, sess *client.Session, participants [][]byte, share driver.KeyShare, message [32]byte) (driver.Signature, error) {
	return d.Sign(ctx, sess, participants, share, message)
}
