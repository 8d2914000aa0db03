package driver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/mpc-relay/relay/client"
	"github.com/mpc-relay/relay/internal/logging"
)

// ackMessageType identifies one Keygen ceremony's readiness round on the wire,
// so LocalDriver can tell its own JSON control messages apart from
// unrelated application traffic on the same client.
const ackMessageType = "driver.keygen_ack"

type ackMessage struct {
	Type  string `json:"type"`
	Group string `json:"group"`
}

// LocalDriver is a single-process stand-in for a real KeyShareDriver; see
// package doc for why it is not a threshold scheme.
type LocalDriver struct{}

// NewLocalDriver constructs a LocalDriver. It holds no state of its own.
func NewLocalDriver() *LocalDriver {
	return &LocalDriver{}
}

var _ KeyShareDriver = (*LocalDriver)(nil)

// Keygen derives a joint group public key deterministically from the
// sorted participant set, exchanges a readiness acknowledgment with every
// other participant over sess (exercising the real peer Noise handshake
// and relay path), and returns a KeyShare carrying that group key plus a
// freshly generated, otherwise-unused local secret.
func (d *LocalDriver) Keygen(ctx context.Context, sess *client.Session, participants [][]byte) (KeyShare, error) {
	logger := logging.For("driver", "Keygen").WithField("participants", len(participants))

	if len(participants) < 2 {
		return KeyShare{}, fmt.Errorf("driver: keygen requires at least 2 participants")
	}
	sorted := sortedCopy(participants)
	groupKey := groupPublicKey(sorted)

	self := sess.PublicKey()
	others, err := otherParticipants(sorted, self)
	if err != nil {
		return KeyShare{}, err
	}

	ack := ackMessage{Type: ackMessageType, Group: fmt.Sprintf("%x", groupKey)}
	pending := make(map[string]struct{}, len(others))
	for _, pk := range others {
		pending[string(pk)] = struct{}{}
		if err := sess.SendJSON(pk, ack, false); err != nil {
			return KeyShare{}, fmt.Errorf("driver: send keygen ack: %w", err)
		}
	}

	if err := awaitAcks(ctx, sess, groupKey, pending); err != nil {
		return KeyShare{}, err
	}

	var localSecret [32]byte
	if _, err := rand.Read(localSecret[:]); err != nil {
		return KeyShare{}, fmt.Errorf("driver: generate local secret: %w", err)
	}

	logger.Info("keygen ceremony complete")
	return KeyShare{
		GroupPublicKey: groupKey,
		LocalSecret:    localSecret,
		Participants:   sorted,
	}, nil
}

// Sign produces a deterministic signature over message, keyed by the
// ceremony's group public key. Every participant computes the identical
// bytes independently — a real threshold scheme would instead require a
// cooperative signing round using each participant's LocalSecret, which
// LocalDriver deliberately does not implement.
func (d *LocalDriver) Sign(ctx context.Context, sess *client.Session, participants [][]byte, share KeyShare, message [32]byte) (Signature, error) {
	mac := hmac.New(sha256.New, share.GroupPublicKey[:])
	mac.Write(message[:])
	return Signature{Bytes: mac.Sum(nil)}, nil
}

// Verify checks a Signature produced by Sign against the ceremony's group
// public key and message. Exposed for tests; no
// production driver would expose verification this way since the
// "signing key" here is public.
func Verify(groupPublicKey [32]byte, message [32]byte, sig Signature) bool {
	mac := hmac.New(sha256.New, groupPublicKey[:])
	mac.Write(message[:])
	return hmac.Equal(mac.Sum(nil), sig.Bytes)
}

func awaitAcks(ctx context.Context, sess *client.Session, groupKey [32]byte, pending map[string]struct{}) error {
	wantGroup := fmt.Sprintf("%x", groupKey)
	for len(pending) > 0 {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return fmt.Errorf("driver: client closed before keygen completed")
			}
			if ev.Kind != client.EventJSONMessage {
				continue
			}
			obj, ok := ev.JSON.(map[string]interface{})
			if !ok {
				continue
			}
			if obj["type"] != ackMessageType || obj["group"] != wantGroup {
				continue
			}
			delete(pending, string(ev.PeerPublicKey))
		case <-ctx.Done():
			return fmt.Errorf("driver: keygen canceled: %w", ctx.Err())
		}
	}
	return nil
}

func sortedCopy(participants [][]byte) [][]byte {
	sorted := make([][]byte, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })
	return sorted
}

func groupPublicKey(sorted [][]byte) [32]byte {
	h := sha256.New()
	for _, pk := range sorted {
		h.Write(pk)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func otherParticipants(sorted [][]byte, self []byte) ([][]byte, error) {
	var others [][]byte
	found := false
	for _, pk := range sorted {
		if bytes.Equal(pk, self) {
			found = true
			continue
		}
		others = append(others, pk)
	}
	if !found {
		return nil, fmt.Errorf("driver: local public key not present in participant set")
	}
	return others, nil
}
