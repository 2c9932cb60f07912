package websocket

// knownHeaders lists the header names this package ever needs to
// compare against, in their canonical (net/http-style) form. Parsing a
// header name against this table avoids allocating a canonicalized
// string for every header line; a name that doesn't match anything here
// still parses fine, it's just kept in raw form (see Request.Headers).
var knownHeaders = []string{
	"Host",
	"Connection",
	"Upgrade",
	"Sec-WebSocket-Key",
	"Sec-WebSocket-Version",
	"Sec-WebSocket-Protocol",
	"Sec-WebSocket-Extensions",
	"Sec-WebSocket-Accept",
	"Origin",
	"Authorization",
	"User-Agent",
	"Content-Length",
}

// canonicalHeaderName returns the canonical spelling of name if it
// matches one of knownHeaders case-insensitively, or "" if it's
// unrecognized. name is compared byte-for-byte with no allocation.
func canonicalHeaderName(name []byte) string {
	for _, k := range knownHeaders {
		if equalFoldASCII(name, k) {
			return k
		}
	}
	return ""
}

// equalFoldASCII reports whether b, interpreted as ASCII, equals s
// ignoring case. It's the case-insensitive compare spec.md §4.1 asks
// for on raw byte spans, without allocating a string to compare against.
func equalFoldASCII(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		if toLowerASCII(b[i]) != toLowerASCII(s[i]) {
			return false
		}
	}
	return true
}

func toLowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// containsTokenFold reports whether the comma-separated token list in
// value contains token, compared case-insensitively with surrounding
// whitespace trimmed from each token. This is how Connection/Upgrade
// header values are checked: browsers send "Connection: keep-alive,
// Upgrade" as often as "Connection: Upgrade", and the lenient mode in
// spec.md §4.4 depends on scanning the whole list rather than an exact
// match.
func containsTokenFold(value, token string) bool {
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			part := trimASCIISpace(value[start:i])
			if equalFoldASCIIStr(part, token) {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func trimASCIISpace(s string) string {
	i, j := 0, len(s)
	for i < j && isASCIISpace(s[i]) {
		i++
	}
	for j > i && isASCIISpace(s[j-1]) {
		j--
	}
	return s[i:j]
}

func equalFoldASCIIStr(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if toLowerASCII(a[i]) != toLowerASCII(b[i]) {
			return false
		}
	}
	return true
}
