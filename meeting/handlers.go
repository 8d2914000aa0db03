package meeting

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mpc-relay/relay/internal/logging"
)

// createRequest is the JSON body for POST /v1/meetings.
type createRequest struct {
	Identifiers []string `json:"identifiers"` // hex-encoded UserId values
	Initiator   string   `json:"initiator"`
}

type createResponse struct {
	MeetingId string `json:"meeting_id"`
}

// joinRequest is the JSON body for POST /v1/meetings/:id/join.
type joinRequest struct {
	UserId    string `json:"user_id,omitempty"` // empty selects the initiator
	PublicKey string `json:"public_key"`         // hex-encoded
}

type joinResponse struct {
	PublicKeys []string `json:"public_keys"`
}

// RegisterRoutes mounts the meeting plane's plain HTTP request/response
// handlers on router under prefix (conventionally "/v1/meetings"). This
// is a thin JSON/hex-over-HTTP skin atop Store — it carries no Noise
// encryption of its own (§4.5: the meeting plane rides the same
// transport, not inside it).
func RegisterRoutes(router gin.IRouter, prefix string, store *Store) {
	router.POST(prefix, func(c *gin.Context) {
		handleCreate(c, store)
	})
	router.POST(prefix+"/:id/join", func(c *gin.Context) {
		handleJoin(c, store)
	})
}

func handleCreate(c *gin.Context, store *Store) {
	logger := logging.For("meeting", "handleCreate")

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identifiers := make([]UserId, 0, len(req.Identifiers))
	for _, hexID := range req.Identifiers {
		id, err := parseUserId(hexID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		identifiers = append(identifiers, id)
	}
	initiator, err := parseUserId(req.Initiator)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingID, err := store.Create(identifiers, initiator)
	if err != nil {
		logger.WithError(err).Warn("create failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, createResponse{MeetingId: meetingID.String()})
}

func handleJoin(c *gin.Context, store *Store) {
	logger := logging.For("meeting", "handleJoin").WithField("meeting_id", c.Param("id"))

	meetingID, err := parseMeetingId(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	publicKey, err := decodeHex(req.PublicKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID *UserId
	if req.UserId != "" {
		id, err := parseUserId(req.UserId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		userID = &id
	}

	// The HTTP handler's own ctx is bound to the request lifetime; a
	// disconnecting HTTP client cancels the wait below without leaking
	// the goroutine past the response.
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestJoinTimeout)
	defer cancel()

	keys, err := store.Join(ctx, Options{PublicKey: publicKey}, meetingID, userID)
	if err != nil {
		logger.WithError(err).Warn("join failed or timed out")
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}

	hexKeys := make([]string, len(keys))
	for i, k := range keys {
		hexKeys[i] = encodeHex(k)
	}
	c.JSON(http.StatusOK, joinResponse{PublicKeys: hexKeys})
}

// requestJoinTimeout bounds how long an HTTP join request blocks before
// the handler gives up and replies 504; the underlying meeting itself
// keeps waiting up to its own Timeout for other joiners (over HTTP or
// direct Store calls) to complete it.
const requestJoinTimeout = 3 * time.Minute
