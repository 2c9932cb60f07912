package websocket

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthenticate returns an [AuthenticateFunc] that validates a bearer
// JSON Web Token carried in the Sec-WebSocket-Protocol header, the
// conventional place for a WebSocket handshake to smuggle an auth
// token since custom headers are often unavailable to browser
// WebSocket clients. It mirrors how the teacher's pkg/api/github/api.go
// uses golang-jwt/jwt/v5, but to verify a token instead of mint one.
//
// The header's whole value is treated as the token. The handshake
// response does not echo it back as a negotiated sub-protocol, and any
// other use of Sec-WebSocket-Protocol is outside this function's scope.
func JWTAuthenticate(secret []byte) AuthenticateFunc {
	keyFunc := func(t *jwt.Token) (any, error) {
		return secret, nil
	}

	return func(req *Request) bool {
		token, ok := req.Header("Sec-WebSocket-Protocol")
		if !ok || token == "" {
			return false
		}

		parsed, err := jwt.Parse(token, keyFunc, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		return err == nil && parsed.Valid
	}
}
