package keys

import (
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

const (
	pemPrivateBlockType = "MPC RELAY PRIVATE KEY"
	pemPublicBlockType  = "MPC RELAY PUBLIC KEY"
)

// EncodePEM renders a keypair as two concatenated PEM blocks: the private
// key followed by the public key. This is the textual form handed back to
// a binding layer's generate_keypair() call (§6) — the wire protocol and
// Noise layer never consume this encoding themselves.
func EncodePEM(kp *Keypair) []byte {
	priv := pem.EncodeToMemory(&pem.Block{
		Type:  pemPrivateBlockType,
		Bytes: kp.Private[:],
	})
	pub := pem.EncodeToMemory(&pem.Block{
		Type:  pemPublicBlockType,
		Bytes: kp.Public[:],
	})
	return append(priv, pub...)
}

// GenerateKeypair generates a new keypair for pattern and renders it
// directly as PEM, the convenience call a binding layer's
// generate_keypair() would make (§6) without a separate Generate/
// EncodePEM round trip.
func GenerateKeypair(pattern string) ([]byte, error) {
	kp, err := Generate(pattern)
	if err != nil {
		return nil, err
	}
	return EncodePEM(kp), nil
}

// DecodePEM parses the two-block form produced by EncodePEM.
func DecodePEM(data []byte) (*Keypair, error) {
	privBlock, rest := pem.Decode(data)
	if privBlock == nil || privBlock.Type != pemPrivateBlockType {
		return nil, fmt.Errorf("keys: missing %s block", pemPrivateBlockType)
	}
	pubBlock, _ := pem.Decode(rest)
	if pubBlock == nil || pubBlock.Type != pemPublicBlockType {
		return nil, fmt.Errorf("keys: missing %s block", pemPublicBlockType)
	}
	if len(privBlock.Bytes) != 32 || len(pubBlock.Bytes) != 32 {
		return nil, fmt.Errorf("keys: PEM key blocks must be 32 bytes")
	}

	kp := &Keypair{}
	copy(kp.Private[:], privBlock.Bytes)
	copy(kp.Public[:], pubBlock.Bytes)
	return kp, nil
}

// EncodeHex returns the lowercase hex encoding of a public key, the form
// used by meeting.Join results and CLI participant lists.
func EncodeHex(publicKey []byte) string {
	return hex.EncodeToString(publicKey)
}

// DecodeHex parses a hex-encoded public key or user id.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("keys: invalid hex encoding: %w", err)
	}
	return b, nil
}
