// Package keys implements keypair generation and the PEM/hex textual
// encodings used at the user-facing seam of the relay (CLI flags, meeting
// join responses, example binaries). The Noise layer and wire protocol
// never see these encodings; they operate on raw key bytes throughout.
package keys

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"

	"github.com/mpc-relay/relay/internal/logging"
)

// ErrZeroKey indicates a private key consisting entirely of zero bytes,
// which can never be a valid Curve25519 scalar produced by this package.
var ErrZeroKey = errors.New("keys: private key is all zeros")

// Keypair is a Curve25519 (private, public) pair used both to identify a
// peer on the wire and as the DH keypair fed into a Noise handshake.
type Keypair struct {
	Private [32]byte
	Public  [32]byte
}

// Generate creates a new random keypair for use with the named Noise
// pattern. pattern is accepted for parity with a future multi-curve
// driver; every pattern the relay negotiates today pins DH25519, so it is
// otherwise unused.
func Generate(pattern string) (*Keypair, error) {
	logger := logging.For("keys", "Generate").WithField("pattern", pattern)
	logger.Debug("generating new keypair")

	dhKey, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		logger.WithError(err).Error("keypair generation failed")
		return nil, fmt.Errorf("keys: generate keypair: %w", err)
	}

	kp := &Keypair{}
	copy(kp.Private[:], dhKey.Private)
	copy(kp.Public[:], dhKey.Public)

	logger.WithField("public_key", logging.KeyPreview(kp.Public[:])).
		Info("keypair generated")
	return kp, nil
}

// FromPrivate derives the public half of a keypair from an existing
// 32-byte Curve25519 private scalar. The scalar is clamped per RFC 7748
// before the scalar multiplication, matching the convention flynn/noise
// itself applies internally.
func FromPrivate(priv [32]byte) (*Keypair, error) {
	if isZero(priv) {
		return nil, ErrZeroKey
	}

	clamped := priv
	clamped[0] &= 248
	clamped[31] &= 127
	clamped[31] |= 64

	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &clamped)

	return &Keypair{Private: priv, Public: pub}, nil
}

func isZero(key [32]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}

// DHKey adapts the keypair to flynn/noise's noise.DHKey representation,
// the shape the noise package's session wrapper consumes directly.
func (k *Keypair) DHKey() noise.DHKey {
	return noise.DHKey{
		Private: append([]byte(nil), k.Private[:]...),
		Public:  append([]byte(nil), k.Public[:]...),
	}
}
