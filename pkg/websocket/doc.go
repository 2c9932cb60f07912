// Package websocket is a server-side implementation of the WebSocket
// protocol (RFC 6455): parsing the HTTP/1.1 upgrade request directly
// off the incoming byte stream, negotiating the handshake, and
// decoding/encoding frames without copying payload bytes any more than
// necessary.
//
// A connection's lifecycle is: [Accept] reads and validates the
// upgrade request and writes the 101 response, then hands back a
// [Conn] whose [Conn.IncomingMessages] channel publishes defragmented
// [Message]s and whose [Conn.SendTextMessage]/[Conn.SendBinaryMessage]
// send data the other way.
//
// Design notes:
//  1. [ByteView] models the bytes read off a connection as a sequence
//     of independently-allocated spans rather than one contiguous
//     buffer, since a single read from the network can end in the
//     middle of a request line, a header, or a frame header/payload.
//  2. A server never masks outgoing frames and always requires masked
//     incoming ones, the inverse of the client-side masking rules in
//     https://datatracker.ietf.org/doc/html/rfc6455#section-5.3.
//  3. WebSocket [extensions] and [subprotocols] are not negotiated; a
//     [Sec-WebSocket-Protocol] header is only ever inspected by the
//     optional [JWTAuthenticate] hook, never echoed back.
//  4. Hixie-76/hybi-00 requests are detected (so they fail fast with a
//     clear error) but never functionally supported.
//
// [extensions]: https://www.iana.org/assignments/websocket/websocket.xhtml#extension-name
// [subprotocols]: https://www.iana.org/assignments/websocket/websocket.xhtml#subprotocol-name
package websocket
