package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateProducesDistinctKeypairs(t *testing.T) {
	a, err := Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)
	b, err := Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	require.NotEqual(t, a.Private, b.Private)
	require.NotEqual(t, a.Public, b.Public)
}

func TestFromPrivateIsDeterministic(t *testing.T) {
	seed, err := Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	derived, err := FromPrivate(seed.Private)
	require.NoError(t, err)
	require.Equal(t, seed.Public, derived.Public)
}

func TestFromPrivateRejectsZeroKey(t *testing.T) {
	var zero [32]byte
	_, err := FromPrivate(zero)
	require.ErrorIs(t, err, ErrZeroKey)
}

func TestPEMRoundTrip(t *testing.T) {
	kp, err := Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	encoded := EncodePEM(kp)
	decoded, err := DecodePEM(encoded)
	require.NoError(t, err)

	require.Equal(t, kp.Private, decoded.Private)
	require.Equal(t, kp.Public, decoded.Public)
}

func TestHexRoundTrip(t *testing.T) {
	kp, err := Generate("Noise_XX_25519_ChaChaPoly_SHA256")
	require.NoError(t, err)

	encoded := EncodeHex(kp.Public[:])
	decoded, err := DecodeHex(encoded)
	require.NoError(t, err)
	require.Equal(t, kp.Public[:], decoded)
}

func TestDecodeHexRejectsInvalidInput(t *testing.T) {
	_, err := DecodeHex("not-hex!!")
	require.Error(t, err)
}
