package noise

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mpc-relay/relay/keys"
)

// handshakeToTransport drives a full Noise_XX exchange (-> e; <- e, ee, s,
// es; -> s, se) between a fresh initiator/responder pair and returns both
// sides' completed TransportSession. The initiator's second Step call
// completes its side one exchange before the responder's does, so the
// steps are sequenced explicitly rather than in a symmetric loop.
func handshakeToTransport(t *testing.T) (*TransportSession, *TransportSession) {
	t.Helper()

	initiatorKeys, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)
	responderKeys, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	initiator, err := BeginInitiator(xxPatternName, initiatorKeys, nil)
	require.NoError(t, err)
	responder, err := BeginResponder(xxPatternName, responderKeys)
	require.NoError(t, err)

	initiatorState1, out1, err := initiator.Step(nil)
	require.NoError(t, err)
	require.False(t, initiatorState1.IsTransport())

	responderState1, out2, err := responder.Step(out1)
	require.NoError(t, err)
	require.False(t, responderState1.IsTransport())

	initiatorState2, out3, err := initiator.Step(out2)
	require.NoError(t, err)
	require.True(t, initiatorState2.IsTransport())

	responderState2, out4, err := responder.Step(out3)
	require.NoError(t, err)
	require.True(t, responderState2.IsTransport())
	require.Nil(t, out4)

	return initiatorState2.(*TransportSession), responderState2.(*TransportSession)
}

func TestHandshakeTransitionsToTransport(t *testing.T) {
	initiator, responder := handshakeToTransport(t)
	require.NotNil(t, initiator)
	require.NotNil(t, responder)
}

func TestStepAfterCompletionErrors(t *testing.T) {
	initiatorKeys, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)
	responderKeys, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	initiator, err := BeginInitiator(xxPatternName, initiatorKeys, nil)
	require.NoError(t, err)
	responder, err := BeginResponder(xxPatternName, responderKeys)
	require.NoError(t, err)

	_, out1, err := initiator.Step(nil)
	require.NoError(t, err)
	_, out2, err := responder.Step(out1)
	require.NoError(t, err)
	_, out3, err := initiator.Step(out2)
	require.NoError(t, err)
	_, _, err = responder.Step(out3)
	require.NoError(t, err)

	// Both sides already completed; calling Step again on either
	// underlying HandshakeSession must report completion rather than
	// attempt another Noise exchange round.
	_, _, err = initiator.Step(nil)
	require.ErrorIs(t, err, ErrHandshakeComplete)
	_, _, err = responder.Step(nil)
	require.ErrorIs(t, err, ErrHandshakeComplete)
}

func TestSealOpenRoundTrip(t *testing.T) {
	initiator, responder := handshakeToTransport(t)

	plaintext := []byte("threshold-signature-share")
	sealed, err := initiator.Seal(plaintext)
	require.NoError(t, err)
	require.Len(t, sealed, len(plaintext)+16)

	opened, err := responder.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestSealOpenRoundTripOtherDirection(t *testing.T) {
	initiator, responder := handshakeToTransport(t)

	plaintext := []byte("signature-share-response")
	sealed, err := responder.Seal(plaintext)
	require.NoError(t, err)

	opened, err := initiator.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	initiator, responder := handshakeToTransport(t)

	sealed, err := initiator.Seal([]byte("message"))
	require.NoError(t, err)
	sealed[0] ^= 0xff

	_, err = responder.Open(sealed)
	require.Error(t, err)
}

func TestOpenRejectsShortCiphertext(t *testing.T) {
	_, responder := handshakeToTransport(t)

	_, err := responder.Open([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortCiphertext)
}

func TestOpenRejectsReplayedCiphertext(t *testing.T) {
	initiator, responder := handshakeToTransport(t)

	sealed, err := initiator.Seal([]byte("first"))
	require.NoError(t, err)

	_, err = responder.Open(sealed)
	require.NoError(t, err)

	sealed2, err := initiator.Seal([]byte("second"))
	require.NoError(t, err)
	_, err = responder.Open(sealed2)
	require.NoError(t, err)

	// Replaying the first ciphertext after the nonce counter has advanced
	// must fail: Noise's per-direction nonce is strictly increasing.
	_, err = responder.Open(sealed)
	require.Error(t, err)
}

func TestBeginRejectsUnsupportedPattern(t *testing.T) {
	kp, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	_, err = BeginInitiator("Noise_IK_25519_ChaChaPoly_SHA256", kp, nil)
	require.ErrorIs(t, err, ErrUnsupportedPattern)

	_, err = BeginResponder("garbage-pattern", kp)
	require.ErrorIs(t, err, ErrUnsupportedPattern)
}

func TestBeginAcceptsEmptyPatternAsDefault(t *testing.T) {
	kp, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	_, err = BeginInitiator("", kp, nil)
	require.NoError(t, err)
}

func TestPeerStaticMatchesRemoteIdentity(t *testing.T) {
	initiatorKeys, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)
	responderKeys, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	initiator, err := BeginInitiator(xxPatternName, initiatorKeys, nil)
	require.NoError(t, err)
	responder, err := BeginResponder(xxPatternName, responderKeys)
	require.NoError(t, err)

	_, out1, err := initiator.Step(nil)
	require.NoError(t, err)
	_, out2, err := responder.Step(out1)
	require.NoError(t, err)
	initiatorState, out3, err := initiator.Step(out2)
	require.NoError(t, err)
	responderState, _, err := responder.Step(out3)
	require.NoError(t, err)

	initiatorTransport := initiatorState.(*TransportSession)
	responderTransport := responderState.(*TransportSession)
	require.Equal(t, responderKeys.Public[:], initiatorTransport.PeerStatic())
	require.Equal(t, initiatorKeys.Public[:], responderTransport.PeerStatic())
}

func TestHandshakeSessionPeerStaticNilBeforeReveal(t *testing.T) {
	kp, err := keys.Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)
	initiator, err := BeginInitiator(xxPatternName, kp, nil)
	require.NoError(t, err)

	// The initiator's first message (-> e) carries no static key, so the
	// peer's identity is not yet known.
	require.Nil(t, initiator.PeerStatic())
}
