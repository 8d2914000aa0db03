package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mpc-relay/relay/protocol"
)

func TestPipeConnRoundTrip(t *testing.T) {
	clientNC, serverNC := net.Pipe()
	client := NewPipeConn(clientNC)
	server := NewPipeConn(serverNC)
	defer client.Close()
	defer server.Close()

	frame := []byte("hello-relay")
	done := make(chan error, 1)
	go func() {
		done <- client.WriteFrame(frame)
	}()

	got, err := server.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, frame, got)
	require.NoError(t, <-done)
}

func TestPipeConnRejectsOversizedFrame(t *testing.T) {
	clientNC, serverNC := net.Pipe()
	client := NewPipeConn(clientNC)
	server := NewPipeConn(serverNC)
	defer client.Close()
	defer server.Close()

	oversized := make([]byte, protocol.MaxFrameSize+1)
	err := client.WriteFrame(oversized)
	require.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}

func TestPipeConnReadAfterCloseErrors(t *testing.T) {
	clientNC, serverNC := net.Pipe()
	client := NewPipeConn(clientNC)
	server := NewPipeConn(serverNC)

	require.NoError(t, client.Close())
	require.NoError(t, server.Close())

	_, err := server.ReadFrame()
	require.Error(t, err)
}
