package driver_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mpc-relay/relay/client"
	"github.com/mpc-relay/relay/driver"
	"github.com/mpc-relay/relay/keys"
	"github.com/mpc-relay/relay/server"
	"github.com/mpc-relay/relay/transport"
)

func dialPipe() (transport.Conn, transport.Conn) {
	clientNC, serverNC := net.Pipe()
	return transport.NewPipeConn(clientNC), transport.NewPipeConn(serverNC)
}

func connectClient(t *testing.T, srv *server.Server, serverPublicKey []byte) *client.Client {
	t.Helper()
	clientKeys, err := keys.Generate("")
	require.NoError(t, err)

	clientConn, serverConn := dialPipe()
	srv.Accept(serverConn)

	c, err := client.ConnectWithConn(clientConn, client.Options{ServerPublicKey: serverPublicKey, Local: clientKeys})
	require.NoError(t, err)
	return c
}

func drainReady(t *testing.T, c *client.Client) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == client.EventServerReady {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for server ready")
		}
	}
}

func TestKeygenAndSignProduceMatchingResults(t *testing.T) {
	serverKeys, err := keys.Generate("")
	require.NoError(t, err)
	srv := server.New(server.Options{Local: serverKeys, IdleTimeout: time.Minute})
	defer srv.Shutdown()

	alice := connectClient(t, srv, serverKeys.Public[:])
	defer alice.Close()
	bob := connectClient(t, srv, serverKeys.Public[:])
	defer bob.Close()

	drainReady(t, alice)
	drainReady(t, bob)

	participants := [][]byte{alice.PublicKey(), bob.PublicKey()}

	d := driver.NewLocalDriver()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type keygenResult struct {
		share driver.KeyShare
		err   error
	}
	resultsCh := make(chan keygenResult, 2)
	go func() {
		share, err := d.Keygen(ctx, alice, participants)
		resultsCh <- keygenResult{share, err}
	}()
	go func() {
		share, err := d.Keygen(ctx, bob, participants)
		resultsCh <- keygenResult{share, err}
	}()

	first := <-resultsCh
	second := <-resultsCh
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	require.Equal(t, first.share.GroupPublicKey, second.share.GroupPublicKey)

	var message [32]byte
	for i := range message {
		message[i] = byte(i)
	}

	sigA, err := d.Sign(ctx, alice, participants, first.share, message)
	require.NoError(t, err)
	sigB, err := d.Sign(ctx, bob, participants, second.share, message)
	require.NoError(t, err)

	require.Equal(t, sigA.Bytes, sigB.Bytes)
	require.True(t, driver.Verify(first.share.GroupPublicKey, message, sigA))
}
