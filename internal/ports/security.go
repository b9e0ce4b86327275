package ports

import "time"

// Values of the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenClaims is the verified content of an access or refresh token.
type TokenClaims struct {
	Subject     string    `json:"sub"`
	Type        string    `json:"typ"`
	Authorities []string  `json:"authorities,omitempty"`
	IssuedAt    time.Time `json:"iat"`
	ExpiresAt   time.Time `json:"exp"`
}

// TokenIssuer mints and checks stateless signed tokens.
type TokenIssuer interface {
	CreateAccessToken(subject string, authorities []string) (string, error)
	CreateRefreshToken(subject string) (string, error)
	// ValidateAccess and ValidateRefresh fail with domain.ErrExpired or
	// domain.ErrInvalidToken, including when the token is of the other type.
	ValidateAccess(token string) (TokenClaims, error)
	ValidateRefresh(token string) (TokenClaims, error)
	// Authorities reads the authority claim of a correctly signed token without checking expiry.
	Authorities(token string) ([]string, error)
	PublicJWKs() ([]map[string]any, error)
}
