package meeting

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("meeting: invalid hex: %w", err)
	}
	return b, nil
}

func encodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

func parseUserId(s string) (UserId, error) {
	b, err := decodeHex(s)
	if err != nil {
		return UserId{}, err
	}
	if len(b) != 32 {
		return UserId{}, fmt.Errorf("meeting: user id must be 32 bytes, got %d", len(b))
	}
	var id UserId
	copy(id[:], b)
	return id, nil
}

func parseMeetingId(s string) (MeetingId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return MeetingId{}, fmt.Errorf("meeting: invalid meeting id: %w", err)
	}
	var id MeetingId
	copy(id[:], u[:])
	return id, nil
}
