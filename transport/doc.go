// Package transport provides the framed byte-stream abstraction that
// carries protocol.Request/protocol.Response frames between clients and
// the relay server. Production deployments speak it over a websocket
// (github.com/gorilla/websocket, upgraded from github.com/gin-gonic/gin);
// tests and in-process scenarios speak it over a net.Pipe. Both
// implementations satisfy the same Conn interface, so callers in
// client and server never depend on which substrate is underneath
// (§8's "an in-memory net.Pipe-backed transport satisfies the same
// interface the websocket transport does").
package transport
