// Package keys implements Curve25519 keypair generation and the textual
// (PEM/hex) encodings used only at the user-facing seam described in §4.6
// of the specification. The wire protocol, Noise session wrapper, and
// relay dispatch logic never import this package — they operate on raw
// key bytes end to end.
package keys
