package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mpc-relay/relay/internal/logging"
)

// writeTimeout bounds how long a single WriteFrame call may block on a
// slow or stalled peer before giving up.
const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts a *websocket.Conn to the Conn interface. Every frame is
// sent and received as a single BinaryMessage, so the protocol codec's
// own length-prefixed fields are the only framing needed within it.
type wsConn struct {
	conn *websocket.Conn
}

// NewWebsocketConn wraps an already-established *websocket.Conn.
func NewWebsocketConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (w *wsConn) ReadFrame() ([]byte, error) {
	kind, data, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			return nil, fmt.Errorf("transport: websocket read: %w", err)
		}
		return nil, ErrClosed
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("transport: unexpected websocket message type %d", kind)
	}
	return data, nil
}

func (w *wsConn) WriteFrame(frame []byte) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("transport: websocket write: %w", err)
	}
	return nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

func (w *wsConn) RemoteAddr() string {
	if addr := w.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Dial opens a client-side websocket connection to the relay server at
// url (e.g. "ws://relay.example:8443/v1/session").
func Dial(url string) (Conn, error) {
	logger := logging.For("transport", "Dial").WithField("url", url)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logger.WithError(err).Error("websocket dial failed")
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	logger.Debug("websocket dial succeeded")
	return NewWebsocketConn(conn), nil
}

// UpgradeHandler is the callback RegisterUpgrade invokes once a client's
// HTTP connection has been upgraded to a websocket. Implementations take ownership of conn and must eventually
// call Close.
type UpgradeHandler func(conn Conn, request *http.Request)

// RegisterUpgrade mounts a websocket upgrade endpoint on the given gin
// router at path, invoking handler for each accepted connection in its
// own goroutine.
func RegisterUpgrade(router gin.IRouter, path string, handler UpgradeHandler) {
	logger := logging.For("transport", "RegisterUpgrade").WithField("path", path)
	router.GET(path, func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		go handler(NewWebsocketConn(conn), c.Request)
	})
}
