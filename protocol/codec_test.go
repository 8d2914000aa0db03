package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		RequestHandshakeInitiator{Kind: HandshakeServer, Len: 48, Buf: []byte("hello-handshake")},
		RequestHandshakeInitiator{Kind: HandshakePeer, Len: 0, Buf: []byte{}},
		RequestRelayPeer{PublicKey: []byte{1, 2, 3}, Message: []byte("opaque-blob")},
	}

	for _, msg := range cases {
		encoded, err := EncodeRequest(msg)
		require.NoError(t, err)

		decoded, err := DecodeRequest(encoded)
		require.NoError(t, err)
		require.Equal(t, msg, decoded)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		ResponseError{Code: 404, Message: "peer not connected"},
		ResponseHandshakeResponder{Kind: HandshakeServer, Len: 64, Buf: []byte("response-bytes")},
		ResponseRelayPeer{PublicKey: []byte{9, 9, 9}, Message: []byte("relayed")},
	}

	for _, msg := range cases {
		encoded, err := EncodeResponse(msg)
		require.NoError(t, err)

		decoded, err := DecodeResponse(encoded)
		require.NoError(t, err)
		require.Equal(t, msg, decoded)
	}
}

func TestDecodeRequestRejectsUnknownTag(t *testing.T) {
	_, err := DecodeRequest([]byte{99})
	require.Equal(t, ErrMessageKind{Tag: 99}, err)
}

func TestDecodeRequestRejectsResponseOnlyTags(t *testing.T) {
	// Error (1) and HandshakeResponder (3) are valid response tags but
	// are never valid as a request.
	_, err := DecodeRequest([]byte{1})
	require.Equal(t, ErrMessageKind{Tag: 1}, err)

	_, err = DecodeRequest([]byte{3})
	require.Equal(t, ErrMessageKind{Tag: 3}, err)
}

func TestDecodeResponseRejectsRequestOnlyTag(t *testing.T) {
	_, err := DecodeResponse([]byte{2})
	require.Equal(t, ErrMessageKind{Tag: 2}, err)
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	oversized := make([]byte, MaxFrameSize+1)
	_, err := DecodeRequest(oversized)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeRejectsOversizedLengthPrefix(t *testing.T) {
	msg := RequestRelayPeer{PublicKey: []byte{1}, Message: []byte("x")}
	encoded, err := EncodeRequest(msg)
	require.NoError(t, err)

	// Corrupt the public key length prefix (bytes 1-4) to declare a size
	// larger than MaxFrameSize.
	encoded[1] = 0xff
	encoded[2] = 0xff
	encoded[3] = 0xff
	encoded[4] = 0xff

	_, err = DecodeRequest(encoded)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	msg := RequestRelayPeer{PublicKey: []byte{1, 2, 3, 4}, Message: []byte("hello")}
	encoded, err := EncodeRequest(msg)
	require.NoError(t, err)

	_, err = DecodeRequest(encoded[:len(encoded)-2])
	require.Error(t, err)
}

func TestEncodeNoopPanics(t *testing.T) {
	require.Panics(t, func() {
		_, _ = EncodeRequest(nil)
	})
}

func TestEnvelopeRoundTrip(t *testing.T) {
	payload := []byte("ciphertext-bytes-plus-tag")
	env := SealedEnvelope{
		Length:    uint32(len(payload)),
		Encoding:  EncodingJSON,
		Payload:   payload,
		Broadcast: true,
	}

	blob, err := EncodeEnvelope(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(blob)
	require.NoError(t, err)
	require.Equal(t, env, decoded)
}

func TestEncodeEnvelopeRejectsLengthMismatch(t *testing.T) {
	_, err := EncodeEnvelope(SealedEnvelope{Length: 10, Payload: []byte("short")})
	require.Error(t, err)
}
