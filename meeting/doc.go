// Package meeting implements the public-key rendezvous that runs before
// any Noise handshake: a short-lived MeetingPoint collects one public key
// submission per expected participant and releases the full set to every
// joiner simultaneously, or to none at all.
//
// Unlike the client/server Noise sessions, the meeting plane is not
// Noise-encrypted between client and server — it rides the same
// transport but is exposed as plain request/response, as a gin HTTP
// handler pair, or called directly on a Store in process; there is no
// websocket control message for it. Authentication of a submitted UserId is
// trust-on-first-submission; see DESIGN.md for why no stronger policy is
// implemented here.
package meeting
