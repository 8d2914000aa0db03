package meeting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func idFor(b byte) UserId {
	var id UserId
	id[0] = b
	return id
}

func TestThreePartyMeetingReleasesAllSimultaneously(t *testing.T) {
	store := NewStore()
	a, b, c := idFor(1), idFor(2), idFor(3)
	meetingID, err := store.Create([]UserId{a, b, c}, a)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][][]byte, 3)
	errs := make([]error, 3)

	join := func(idx int, id UserId, pk []byte) {
		defer wg.Done()
		results[idx], errs[idx] = store.Join(context.Background(), Options{PublicKey: pk}, meetingID, &id)
	}

	wg.Add(3)
	go join(0, a, []byte("pk-a"))
	go join(1, b, []byte("pk-b"))
	time.Sleep(20 * time.Millisecond) // ensure a, b are blocked before c completes it
	go join(2, c, []byte("pk-c"))
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 3)
	}
	require.Equal(t, results[0], results[1])
	require.Equal(t, results[1], results[2])
}

func TestMeetingTimeoutFailsPendingJoiners(t *testing.T) {
	store := NewStore()
	a, b, c := idFor(1), idFor(2), idFor(3)
	meetingID, err := store.Create([]UserId{a, b, c}, a)
	require.NoError(t, err)

	opts := Options{Timeout: 30 * time.Millisecond}

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = store.Join(context.Background(), Options{PublicKey: []byte("pk-a"), Timeout: opts.Timeout}, meetingID, &a)
	}()
	go func() {
		defer wg.Done()
		_, errB = store.Join(context.Background(), Options{PublicKey: []byte("pk-b"), Timeout: opts.Timeout}, meetingID, &b)
	}()
	wg.Wait()

	require.ErrorIs(t, errA, ErrMeetingTimeout)
	require.ErrorIs(t, errB, ErrMeetingTimeout)

	_, err = store.Join(context.Background(), Options{PublicKey: []byte("pk-c")}, meetingID, &c)
	require.ErrorIs(t, err, ErrMeetingNotFound)
}

func TestJoinRejectsUnknownIdentifier(t *testing.T) {
	store := NewStore()
	a, b := idFor(1), idFor(2)
	meetingID, err := store.Create([]UserId{a}, a)
	require.NoError(t, err)

	_, err = store.Join(context.Background(), Options{PublicKey: []byte("pk-b")}, meetingID, &b)
	require.ErrorIs(t, err, ErrUnknownIdentifier)
}

func TestJoinRejectsDuplicateSubmission(t *testing.T) {
	store := NewStore()
	a, b := idFor(1), idFor(2)
	meetingID, err := store.Create([]UserId{a, b}, a)
	require.NoError(t, err)

	go func() {
		_, _ = store.Join(context.Background(), Options{PublicKey: []byte("pk-a")}, meetingID, &a)
	}()
	time.Sleep(20 * time.Millisecond)

	_, err = store.Join(context.Background(), Options{PublicKey: []byte("pk-a-again")}, meetingID, &a)
	require.ErrorIs(t, err, ErrMeetingFull)
}

func TestJoinDefaultsToInitiatorWhenUserIDNil(t *testing.T) {
	store := NewStore()
	a, b := idFor(1), idFor(2)
	meetingID, err := store.Create([]UserId{a, b}, a)
	require.NoError(t, err)

	go func() {
		_, _ = store.Join(context.Background(), Options{PublicKey: []byte("pk-a")}, meetingID, nil)
	}()

	keys, err := store.Join(context.Background(), Options{PublicKey: []byte("pk-b")}, meetingID, &b)
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestJoinCancelableViaContext(t *testing.T) {
	store := NewStore()
	a, b := idFor(1), idFor(2)
	meetingID, err := store.Create([]UserId{a, b}, a)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = store.Join(ctx, Options{PublicKey: []byte("pk-a")}, meetingID, &a)
	require.ErrorIs(t, err, context.Canceled)
}
