package meeting

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpc-relay/relay/internal/logging"
)

// defaultTimeout bounds how long a MeetingPoint waits for every expected
// identifier to submit before destroying itself and failing every pending
// Join.
const defaultTimeout = 2 * time.Minute

// UserId is an application-supplied participant identifier, typically a
// domain-salted hash. It is meaningful only to the meeting plane; the
// Noise layer never sees it.
type UserId [32]byte

// MeetingId opaquely names one rendezvous.
type MeetingId [16]byte

// ErrMeetingTimeout is returned to every still-pending Join when a
// meeting's timeout elapses before all expected identifiers submit.
var ErrMeetingTimeout = errors.New("meeting: timed out waiting for all participants")

// ErrMeetingFull is returned when an identifier that has already
// submitted attempts to submit again.
var ErrMeetingFull = errors.New("meeting: participant already submitted")

// ErrUnknownIdentifier is returned when Join or the public-key submission
// names a UserId that was not part of the identifier set passed to
// Create.
var ErrUnknownIdentifier = errors.New("meeting: identifier not part of this meeting")

// ErrMeetingNotFound is returned when meetingID does not name a meeting
// currently held by the Store — either it never existed, already
// completed, or timed out.
var ErrMeetingNotFound = errors.New("meeting: unknown meeting id")

// Options configures meeting operations. PublicKey is the caller's own
// public key, submitted on Join; Timeout overrides defaultTimeout when
// nonzero.
type Options struct {
	PublicKey []byte
	Timeout   time.Duration
}

// point is one in-progress rendezvous: a set of expected identifiers, the
// public keys submitted so far, and a completion gate. Guarded by mu per
// §5 — the owning Store goroutine-set only ever holds this lock for O(1)
// map operations, never across the blocking wait in Join.
type point struct {
	mu         sync.Mutex
	expected   map[UserId]struct{}
	submitted  map[UserId][]byte
	order      []UserId
	initiator  UserId
	done       chan struct{}
	doneOnce   sync.Once
	timedOut   bool
	resultKeys [][]byte
}

func newPoint(identifiers []UserId, initiator UserId) *point {
	expected := make(map[UserId]struct{}, len(identifiers))
	for _, id := range identifiers {
		expected[id] = struct{}{}
	}
	return &point{
		expected:  expected,
		submitted: make(map[UserId][]byte, len(identifiers)),
		done:      make(chan struct{}),
		initiator: initiator,
	}
}

// submit records id's public key. It returns true once every expected
// identifier has submitted, at which point the caller (Store) should
// finalize and release the point.
func (p *point) submit(id UserId, publicKey []byte) (complete bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.expected[id]; !ok {
		return false, ErrUnknownIdentifier
	}
	if _, ok := p.submitted[id]; ok {
		return false, ErrMeetingFull
	}

	p.submitted[id] = append([]byte(nil), publicKey...)
	p.order = append(p.order, id)
	return len(p.submitted) == len(p.expected), nil
}

// finalize snapshots the submitted public keys in submission order and
// releases every blocked Join. Safe to call at most once; guarded by
// doneOnce.
func (p *point) finalize() {
	p.doneOnce.Do(func() {
		p.mu.Lock()
		keys := make([][]byte, 0, len(p.order))
		for _, id := range p.order {
			keys = append(keys, p.submitted[id])
		}
		p.resultKeys = keys
		p.mu.Unlock()
		close(p.done)
	})
}

// expire marks the point as timed out and releases every blocked Join
// with ErrMeetingTimeout.
func (p *point) expire() {
	p.doneOnce.Do(func() {
		p.mu.Lock()
		p.timedOut = true
		p.mu.Unlock()
		close(p.done)
	})
}

// Store holds every in-progress meeting. The zero value is not usable;
// construct with NewStore.
type Store struct {
	mu       sync.RWMutex
	meetings map[MeetingId]*point
}

// NewStore constructs an empty meeting Store.
func NewStore() *Store {
	return &Store{meetings: make(map[MeetingId]*point)}
}

// Create registers a new meeting expecting exactly identifiers to submit
// a public key, with initiator marked as the convening participant. The
// returned MeetingId is generated with google/uuid and is safe to share
// with every expected participant out of band.
func (s *Store) Create(identifiers []UserId, initiator UserId) (MeetingId, error) {
	logger := logging.For("meeting", "Create").WithField("participants", len(identifiers))

	if len(identifiers) == 0 {
		logger.Warn("refusing to create a meeting with no participants")
		return MeetingId{}, fmt.Errorf("meeting: identifiers must be non-empty")
	}

	id, err := newMeetingId()
	if err != nil {
		return MeetingId{}, fmt.Errorf("meeting: generate id: %w", err)
	}

	s.mu.Lock()
	s.meetings[id] = newPoint(identifiers, initiator)
	s.mu.Unlock()

	logger.WithField("meeting_id", id.String()).Info("meeting created")
	return id, nil
}

// Join submits options.PublicKey under userID and blocks until every
// expected identifier has submitted, ctx is canceled, or the meeting's
// timeout elapses. userID may be nil, in which case the identifier
// supplied to Create as initiator is used — the convening participant
// does not need to repeat its own identifier.
func (s *Store) Join(ctx context.Context, options Options, meetingID MeetingId, userID *UserId) ([][]byte, error) {
	logger := logging.For("meeting", "Join").
		WithField("meeting_id", meetingID.String())

	s.mu.RLock()
	p, ok := s.meetings[meetingID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrMeetingNotFound
	}

	id := p.initiator
	if userID != nil {
		id = *userID
	}

	complete, err := p.submit(id, options.PublicKey)
	if err != nil {
		logger.WithError(err).Warn("submission rejected")
		return nil, err
	}

	if complete {
		p.finalize()
		s.remove(meetingID)
		logger.Info("meeting complete, releasing all joiners")
	} else {
		timeout := options.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		s.armTimeout(meetingID, p, timeout)
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	timedOut := p.timedOut
	keys := p.resultKeys
	p.mu.Unlock()
	if timedOut {
		return nil, ErrMeetingTimeout
	}
	return keys, nil
}

// armTimeout starts a goroutine that fails the meeting if it has not
// completed within timeout. Called on every non-completing Join, so a
// meeting may have several such goroutines; expire is doneOnce-guarded, so
// only the first to fire has any effect. The last, completing Join arms
// none.
func (s *Store) armTimeout(meetingID MeetingId, p *point, timeout time.Duration) {
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-p.done:
		case <-timer.C:
			p.expire()
			s.remove(meetingID)
			logging.For("meeting", "armTimeout").
				WithField("meeting_id", meetingID.String()).
				Warn("meeting timed out, destroying")
		}
	}()
}

func (s *Store) remove(meetingID MeetingId) {
	s.mu.Lock()
	delete(s.meetings, meetingID)
	s.mu.Unlock()
}

func newMeetingId() (MeetingId, error) {
	var id MeetingId
	u, err := uuid.NewRandom()
	if err != nil {
		// uuid.NewRandom only fails if crypto/rand is broken; fall back
		// to reading raw bytes directly rather than leave id zeroed.
		if _, rerr := rand.Read(id[:]); rerr != nil {
			return MeetingId{}, rerr
		}
		return id, nil
	}
	copy(id[:], u[:])
	return id, nil
}

// String renders a MeetingId as its canonical UUID form.
func (m MeetingId) String() string {
	var u uuid.UUID
	copy(u[:], m[:])
	return u.String()
}

// String renders a UserId as lowercase hex.
func (u UserId) String() string {
	return fmt.Sprintf("%x", u[:])
}
