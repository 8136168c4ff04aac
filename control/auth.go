// Package control wires the optional distributed control-plane extras: a
// websocket connection to a coordinator that approves/denies publish
// attempts and can kill live streams, a Redis command channel offering the
// same kill path out of band, and an HTTP webhook pair notifying an
// operator's backend when a stream starts and stops.
package control

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MakeAuthToken signs a short-lived HS256 token identifying this server to
// the coordinator's websocket endpoint. An empty secret disables auth
// entirely (token is "").
func MakeAuthToken(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "rtmp-control",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(jwtExpirationSeconds * time.Second).Unix(),
	})
	return token.SignedString([]byte(secret))
}
