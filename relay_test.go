package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	relay "github.com/mpc-relay/relay"
	"github.com/mpc-relay/relay/keys"
	"github.com/mpc-relay/relay/meeting"
)

func TestGenerateKeypairRoundTrips(t *testing.T) {
	pem, err := relay.GenerateKeypair("")
	require.NoError(t, err)

	kp, err := keys.DecodePEM(pem)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, kp.Public)
}

func TestCreateAndJoinMeetingViaUmbrellaAPI(t *testing.T) {
	store := meeting.NewStore()
	var a, b meeting.UserId
	a[0], b[0] = 1, 2

	meetingID, err := relay.CreateMeeting(store, []meeting.UserId{a, b}, a)
	require.NoError(t, err)

	results := make(chan [][]byte, 2)
	errs := make(chan error, 2)
	ctx := context.Background()

	go func() {
		keys, err := relay.JoinMeeting(ctx, store, meeting.Options{PublicKey: []byte("pk-a")}, meetingID, nil)
		results <- keys
		errs <- err
	}()
	go func() {
		time.Sleep(10 * time.Millisecond)
		keys, err := relay.JoinMeeting(ctx, store, meeting.Options{PublicKey: []byte("pk-b")}, meetingID, &b)
		results <- keys
		errs <- err
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
		require.Len(t, <-results, 2)
	}
}
