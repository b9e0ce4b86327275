package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T, clock *testClock) *TokenIssuer {
	t.Helper()
	issuer, err := NewEphemeralTokenIssuer(TokenConfig{
		KeyID:      "test-key",
		Issuer:     "Invoice Manager LLC",
		Audience:   "CUSTOMER_MANAGEMENT_SERVICE",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 5 * 24 * time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return issuer
}

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	token, err := issuer.CreateAccessToken("a@x.com", []string{"READ:USER", "READ:CUSTOMER"})
	require.NoError(t, err)

	claims, err := issuer.ValidateAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)
	assert.Equal(t, []string{"READ:USER", "READ:CUSTOMER"}, claims.Authorities)
	assert.True(t, claims.ExpiresAt.Equal(clock.now.Add(30*time.Minute)), "unexpected expiry %s", claims.ExpiresAt)
}

func TestAccessTokenExpires(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	token, err := issuer.CreateAccessToken("a@x.com", []string{"READ:USER"})
	require.NoError(t, err)

	clock.now = clock.now.Add(30*time.Minute + time.Second)
	_, err = issuer.ValidateAccess(token)
	require.ErrorIs(t, err, domain.ErrExpired)

	authorities, err := issuer.Authorities(token)
	require.NoError(t, err, "authorities are readable after expiry")
	assert.Equal(t, []string{"READ:USER"}, authorities)
}

func TestRefreshTokenCarriesSubjectOnly(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	token, err := issuer.CreateRefreshToken("a@x.com")
	require.NoError(t, err)

	clock.now = clock.now.Add(4 * 24 * time.Hour)
	claims, err := issuer.ValidateRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)
	assert.Equal(t, ports.TokenTypeRefresh, claims.Type)
	assert.Empty(t, claims.Authorities)

	clock.now = clock.now.Add(2 * 24 * time.Hour)
	_, err = issuer.ValidateRefresh(token)
	require.ErrorIs(t, err, domain.ErrExpired)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)
	token, err := issuer.CreateAccessToken("a@x.com", nil)
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		_, err := issuer.ValidateAccess(parts[0] + "." + parts[1] + "." + string(sig))
		require.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := issuer.ValidateAccess("not-a-token")
		require.ErrorIs(t, err, domain.ErrInvalidToken)
		_, err = issuer.Authorities("not-a-token")
		require.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("other key", func(t *testing.T) {
		other := newTestIssuer(t, clock)
		_, err := other.ValidateAccess(token)
		require.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("other audience", func(t *testing.T) {
		foreign, err := newTokenIssuer(TokenConfig{
			KeyID:    "test-key",
			Issuer:   "Invoice Manager LLC",
			Audience: "BILLING",
			Now:      clock.Now,
		}, issuer.privateKey, issuer.publicKey)
		require.NoError(t, err)
		foreignToken, err := foreign.CreateAccessToken("a@x.com", nil)
		require.NoError(t, err)
		_, err = issuer.ValidateAccess(foreignToken)
		require.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	access, err := issuer.CreateAccessToken("a@x.com", []string{"READ:USER"})
	require.NoError(t, err)
	refresh, err := issuer.CreateRefreshToken("a@x.com")
	require.NoError(t, err)

	claims, err := issuer.ValidateAccess(access)
	require.NoError(t, err)
	assert.Equal(t, ports.TokenTypeAccess, claims.Type)

	_, err = issuer.ValidateAccess(refresh)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = issuer.ValidateRefresh(access)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestNewTokenIssuerFromPEM(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	issuer, err := NewTokenIssuer(TokenConfig{KeyID: "k1", Issuer: "iss", Audience: "aud"}, string(privPEM), string(pubPEM))
	require.NoError(t, err)

	keys, err := issuer.PublicJWKs()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "k1", keys[0]["kid"])
	assert.Equal(t, "RS256", keys[0]["alg"])

	_, err = NewTokenIssuer(TokenConfig{KeyID: "k1", Issuer: "iss", Audience: "aud"}, "garbage", string(pubPEM))
	require.Error(t, err)
}
