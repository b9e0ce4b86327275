package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

// TokenConfig describes the claims and lifetimes of issued tokens.
type TokenConfig struct {
	KeyID      string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
	// Now defaults to the UTC wall clock.
	Now func() time.Time
}

// TokenIssuer signs RS256 access and refresh tokens.
type TokenIssuer struct {
	cfg        TokenConfig
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewTokenIssuer builds an issuer from configured PEM keys.
func NewTokenIssuer(cfg TokenConfig, privateKeyPEM, publicKeyPEM string) (*TokenIssuer, error) {
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, errors.New("jwt private/public keys are required")
	}
	priv, err := parseRSAPrivate(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return newTokenIssuer(cfg, priv, pub)
}

// NewEphemeralTokenIssuer creates an in-memory keypair for local runs and tests.
func NewEphemeralTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.KeyID == "" {
		cfg.KeyID = "ephemeral-key-1"
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return newTokenIssuer(cfg, privateKey, &privateKey.PublicKey)
}

func newTokenIssuer(cfg TokenConfig, priv *rsa.PrivateKey, pub *rsa.PublicKey) (*TokenIssuer, error) {
	if cfg.KeyID == "" {
		return nil, errors.New("jwt key id (kid) is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("jwt issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 5 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &TokenIssuer{cfg: cfg, privateKey: priv, publicKey: pub}, nil
}

type accessClaims struct {
	Authorities []string `json:"authorities"`
	TokenType   string   `json:"typ"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *TokenIssuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.cfg.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenIssuer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.cfg.KeyID
	return token.SignedString(s.privateKey)
}

func (s *TokenIssuer) CreateAccessToken(subject string, authorities []string) (string, error) {
	if authorities == nil {
		authorities = []string{}
	}
	return s.sign(accessClaims{
		Authorities:      authorities,
		TokenType:        ports.TokenTypeAccess,
		RegisteredClaims: s.registered(subject, s.cfg.AccessTTL),
	})
}

func (s *TokenIssuer) CreateRefreshToken(subject string) (string, error) {
	return s.sign(refreshClaims{
		TokenType:        ports.TokenTypeRefresh,
		RegisteredClaims: s.registered(subject, s.cfg.RefreshTTL),
	})
}

func (s *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
	}
	return s.publicKey, nil
}

func (s *TokenIssuer) ValidateAccess(raw string) (ports.TokenClaims, error) {
	return s.validate(raw, ports.TokenTypeAccess)
}

func (s *TokenIssuer) ValidateRefresh(raw string) (ports.TokenClaims, error) {
	return s.validate(raw, ports.TokenTypeRefresh)
}

// validate checks signature, issuer, audience, expiry and the typ claim.
func (s *TokenIssuer) validate(raw, tokenType string) (ports.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.cfg.Leeway),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrExpired, err)
		}
		return ports.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return ports.TokenClaims{}, fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}
	if claims.TokenType != tokenType {
		return ports.TokenClaims{}, fmt.Errorf("%w: expected %s token, got %q", domain.ErrInvalidToken, tokenType, claims.TokenType)
	}

	return ports.TokenClaims{
		Subject:     claims.Subject,
		Type:        claims.TokenType,
		Authorities: claims.Authorities,
		IssuedAt:    claims.IssuedAt.Time.UTC(),
		ExpiresAt:   claims.ExpiresAt.Time.UTC(),
	}, nil
}

// Authorities checks the signature but not expiry, issuer or audience.
func (s *TokenIssuer) Authorities(raw string) ([]string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", domain.ErrInvalidToken)
	}
	if claims.Authorities == nil {
		return []string{}, nil
	}
	return claims.Authorities, nil
}

func (s *TokenIssuer) PublicJWKs() ([]map[string]any, error) {
	e := big.NewInt(int64(s.publicKey.E)).Bytes()
	n := s.publicKey.N.Bytes()

	return []map[string]any{
		{
			"kid": s.cfg.KeyID,
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(n),
			"e":   base64.RawURLEncoding.EncodeToString(e),
		},
	}, nil
}

func parseRSAPrivate(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
