package keys

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// Wipe securely erases a byte slice holding sensitive key material.
//
// subtle.XORBytes performs a constant-time XOR the compiler cannot
// optimize away; XORing data with itself (x XOR x = 0) zeros it in place.
func Wipe(data []byte) error {
	if data == nil {
		return errors.New("keys: cannot wipe nil data")
	}
	subtle.XORBytes(data, data, data)
	runtime.KeepAlive(data)
	return nil
}

// WipeKeypair erases the private half of a keypair. Call once the keypair
// (or its DHKey view) is no longer needed — on session destruction per the
// ProtocolState lifecycle invariant in §3.
func WipeKeypair(kp *Keypair) error {
	if kp == nil {
		return errors.New("keys: cannot wipe nil keypair")
	}
	return Wipe(kp.Private[:])
}
