package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the credential payload. Both the HTTP bearer check and the
// push gateway handshake resolve an identity from it without a DB round trip.
type TokenClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}
