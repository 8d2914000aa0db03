package driver

import (
	"context"

	"github.com/mpc-relay/relay/client"
)

// KeyShareDriver is the external MPC/TSS collaborator boundary named in
// §4.7. A production implementation would run an actual threshold
// keygen/signing protocol over sess's peer sessions; the relay core only
// ever sees the opaque KeyShare/Signature results.
type KeyShareDriver interface {
	Keygen(ctx context.Context, sess *client.Session, participants [][]byte) (KeyShare, error)
	Sign(ctx context.Context, sess *client.Session, participants [][]byte, share KeyShare, message [32]byte) (Signature, error)
}
