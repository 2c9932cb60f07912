package websocket

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by RFC 6455 §1.3, not used for anything security-sensitive here.
	"encoding/base64"
	"fmt"
	"strconv"
)

// websocketGUID is the fixed magic string RFC 6455 §1.3 specifies for
// computing a handshake's Sec-WebSocket-Accept value.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ProtocolVariant identifies which version of the WebSocket handshake a
// request is attempting.
type ProtocolVariant int

const (
	// VariantRFC6455 is the standard, currently-deployed protocol.
	VariantRFC6455 ProtocolVariant = iota
	// VariantHixie76 is the pre-standardization Hixie-76/hybi-00
	// handshake. This package detects it only so it can fail the
	// connection with a clear error, rather than silently
	// misinterpreting it as a malformed RFC 6455 request.
	VariantHixie76
)

// HandshakeOptions configures [Negotiate]'s leniency and feature set.
type HandshakeOptions struct {
	// AllowMissingConnectionHeader permits a request that omits the
	// "Connection: Upgrade" token entirely (some proxies and older
	// clients strip or reorder it), so long as "Upgrade: websocket" is
	// present and the Sec-WebSocket-Key/Version pair is valid. Defaults
	// to false (strict RFC 6455 compliance) when the zero value is used.
	AllowMissingConnectionHeader bool
}

// Handshake holds the result of successfully negotiating an upgrade.
type Handshake struct {
	Key    string
	Accept string
}

// Negotiate validates req as an RFC 6455 upgrade request and computes
// its accept token. It never writes anything; callers use
// [WriteHandshakeResponse] (or their own response writer) with the
// result.
func Negotiate(req *Request, opts HandshakeOptions) (*Handshake, error) {
	if v := detectVariant(req); v == VariantHixie76 {
		return nil, newProtocolError(KindUnsupportedVariant, "Hixie-76/hybi-00 is not supported")
	}

	if _, ok := req.Header("Host"); !ok {
		return nil, newProtocolError(KindMissingHost, "")
	}

	upgrade, _ := req.Header("Upgrade")
	if !containsTokenFold(upgrade, "websocket") {
		return nil, newProtocolError(KindNotUpgrade, "")
	}

	connection, _ := req.Header("Connection")
	if !containsTokenFold(connection, "Upgrade") {
		if !opts.AllowMissingConnectionHeader {
			return nil, newProtocolError(KindNotUpgrade, "missing Connection: Upgrade")
		}
	}

	rawVersion, hasVersion := req.Header("Sec-WebSocket-Version")
	if !hasVersion {
		return nil, newProtocolError(KindNotUpgrade, "missing Sec-WebSocket-Version")
	}
	version, err := strconv.Atoi(trimASCIISpace(rawVersion))
	if err != nil {
		return nil, newProtocolError(KindNotUpgrade, fmt.Sprintf("non-numeric Sec-WebSocket-Version %q", rawVersion))
	}
	switch version {
	case 4, 5, 6, 7, 8, 13:
		// RFC 6455 and its late drafts; all negotiate the same way.
	default:
		return nil, newProtocolError(KindUnsupportedVersion, fmt.Sprintf("version %d", version))
	}

	rawKey, ok := req.Header("Sec-WebSocket-Key")
	if !ok || rawKey == "" {
		return nil, newProtocolError(KindMissingKey, "")
	}

	// A key may arrive padded with whitespace (or other stray bytes real
	// browsers have been observed to add); trim anything outside the
	// base64 alphabet from both ends before validating its length.
	key := trimNonBase64(rawKey)
	if len(key) != 24 {
		return nil, newProtocolError(KindBadKeyLength, fmt.Sprintf("trimmed key length %d, want 24", len(key)))
	}
	if decoded, err := base64.StdEncoding.DecodeString(key); err != nil || len(decoded) != 16 {
		return nil, newProtocolError(KindBadKeyLength, "key is not valid base64 for a 16-byte nonce")
	}

	return &Handshake{Key: key, Accept: computeAccept(key)}, nil
}

// trimNonBase64 strips any leading/trailing byte outside the standard
// base64 alphabet (RFC 6455 §4.4's key-trimming rule), so a
// Sec-WebSocket-Key padded with surrounding whitespace still yields the
// same 24-character nonce a well-behaved client intended to send.
func trimNonBase64(s string) string {
	i, j := 0, len(s)
	for i < j && !isBase64Byte(s[i]) {
		i++
	}
	for j > i && !isBase64Byte(s[j-1]) {
		j--
	}
	return s[i:j]
}

func isBase64Byte(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= 'a' && b <= 'z':
		return true
	case b == '/' || b == '+' || b == '=':
		return true
	default:
		return false
	}
}

// detectVariant distinguishes an RFC 6455 upgrade request from a
// Hixie-76/hybi-00 one. The latter uses "Sec-WebSocket-Key1" and
// "Sec-WebSocket-Key2" instead of a single "Sec-WebSocket-Key", and
// carries an 8-byte binary nonce as the request body instead of
// anything in the headers.
func detectVariant(req *Request) ProtocolVariant {
	_, hasKey1 := req.Header("Sec-WebSocket-Key1")
	_, hasKey2 := req.Header("Sec-WebSocket-Key2")
	if hasKey1 && hasKey2 {
		return VariantHixie76
	}
	return VariantRFC6455
}

// computeAccept implements the Sec-WebSocket-Accept calculation from
// https://datatracker.ietf.org/doc/html/rfc6455#section-1.3: concatenate
// the client's key with the fixed GUID, take the SHA-1 digest, and
// base64-encode it. Leading/trailing whitespace in the header value is
// tolerated, matching real browser behavior.
func computeAccept(key string) string {
	h := sha1.New() //nolint:gosec // see import comment
	h.Write([]byte(trimASCIISpace(key)))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// WriteHandshakeResponse appends the bytes of a "101 Switching
// Protocols" response for h to dst and returns the extended slice.
func WriteHandshakeResponse(dst []byte, h *Handshake) []byte {
	dst = append(dst, "HTTP/1.1 101 Switching Protocols\r\n"...)
	dst = append(dst, "Upgrade: websocket\r\n"...)
	dst = append(dst, "Connection: Upgrade\r\n"...)
	dst = append(dst, "Sec-WebSocket-Accept: "...)
	dst = append(dst, h.Accept...)
	dst = append(dst, "\r\n\r\n"...)
	return dst
}
