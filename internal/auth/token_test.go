package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ctchen222/user-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.TokenConfig {
	return config.TokenConfig{
		Secret:    "68V0zWFrS72GbpPreidkQFLfj4v9m3Ti+DXc8OB0gcM=",
		Algorithm: "HS512",
		Issuer:    "THE_ISSUER",
		Audience:  "THE_AUDIENCE",
		NotBefore: 10 * time.Second,
		TTL:       time.Hour,
	}
}

// clock is a settable time source shared by issuer and verifier.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newService(t *testing.T, cfg config.TokenConfig, c *clock) *TokenService {
	t.Helper()
	s, err := NewTokenService(cfg, WithClock(c.Now))
	require.NoError(t, err)
	return s
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	want := Identity{UserID: 42, Name: "Ada Lovelace"}
	tok, err := s.Issue(want)
	require.NoError(t, err)

	c.t = epoch.Add(time.Minute)
	got, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIssue_Claims(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	tok, err := s.Issue(Identity{UserID: 7, Name: "bob"})
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Contains(t, string(header), `"alg":"HS512"`)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))
	assert.Equal(t, "THE_ISSUER", claims["iss"])
	assert.EqualValues(t, epoch.Unix(), claims["iat"])
	assert.EqualValues(t, epoch.Add(10*time.Second).Unix(), claims["nbf"])
	assert.EqualValues(t, epoch.Add(time.Hour).Unix(), claims["exp"])
	assert.Equal(t, []any{float64(7), "bob"}, claims["data"])
}

func TestVerify_NotYetValid(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	tok, err := s.Issue(Identity{UserID: 1, Name: "a"})
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrNotYetValid)

	c.t = epoch.Add(10 * time.Second)
	_, err = s.Verify(tok)
	assert.NoError(t, err)
}

func TestVerify_Expired(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	tok, err := s.Issue(Identity{UserID: 1, Name: "a"})
	require.NoError(t, err)

	c.t = epoch.Add(time.Hour - time.Second)
	_, err = s.Verify(tok)
	assert.NoError(t, err)

	c.t = epoch.Add(time.Hour + time.Second)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func defaultTokenConfig(t *testing.T) config.TokenConfig {
	t.Helper()
	t.Setenv("USERS_API_TOKEN_SECRET", "default-config-secret")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg.Token
}

func TestVerify_DefaultWindowIsExact(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, defaultTokenConfig(t), c)

	tok, err := s.Issue(Identity{UserID: 1, Name: "a"})
	require.NoError(t, err)

	c.t = epoch.Add(9 * time.Second)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrNotYetValid)

	c.t = epoch.Add(10 * time.Second)
	_, err = s.Verify(tok)
	assert.NoError(t, err)

	c.t = epoch.Add(time.Hour)
	_, err = s.Verify(tok)
	assert.NoError(t, err)

	for _, after := range []time.Duration{time.Second, 9 * time.Second} {
		c.t = epoch.Add(time.Hour + after)
		_, err = s.Verify(tok)
		assert.ErrorIs(t, err, ErrExpired, "exp+%s", after)
	}
}

func TestVerify_LeewayWidensNotBeforeOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Leeway = 5 * time.Second
	c := &clock{t: epoch}
	s := newService(t, cfg, c)

	tok, err := s.Issue(Identity{UserID: 1, Name: "a"})
	require.NoError(t, err)

	// nbf is epoch+10s.
	c.t = epoch.Add(4 * time.Second)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrNotYetValid)

	c.t = epoch.Add(5 * time.Second)
	_, err = s.Verify(tok)
	assert.NoError(t, err)

	c.t = epoch.Add(time.Hour + time.Second)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_TamperedBytes(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	tok, err := s.Issue(Identity{UserID: 99, Name: "mallory"})
	require.NoError(t, err)
	c.t = epoch.Add(time.Minute)

	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		replacement := byte('A')
		if tok[i] == 'A' {
			replacement = 'B'
		}
		tampered := tok[:i] + string(replacement) + tok[i+1:]

		_, err := s.Verify(tampered)
		if !assert.ErrorIs(t, err, ErrInvalidSignature, "byte %d", i) {
			return
		}
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	other := testConfig()
	other.Secret = "another-secret"
	verifier := newService(t, other, c)

	tok, err := s.Issue(Identity{UserID: 1, Name: "a"})
	require.NoError(t, err)
	c.t = epoch.Add(time.Minute)

	_, err = verifier.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_AlgorithmMismatch(t *testing.T) {
	c := &clock{t: epoch}
	cfg := testConfig()
	cfg.Algorithm = "HS256"
	signer := newService(t, cfg, c)
	verifier := newService(t, testConfig(), c)

	tok, err := signer.Issue(Identity{UserID: 1, Name: "a"})
	require.NoError(t, err)
	c.t = epoch.Add(time.Minute)

	_, err = verifier.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	for _, tok := range []string{"", "abc", "a.b", "a.b.c.d"} {
		_, err := s.Verify(tok)
		assert.ErrorIs(t, err, ErrMalformed, "token %q", tok)
	}
}

func TestVerify_ThreePartsWithBadSignature(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	// The MAC is checked before the header and claims are decoded, so any
	// three-part string without a valid signature is a signature failure.
	for _, tok := range []string{"a.b.c", "..", "x.y.", "eyJhbGciOiJIUzUxMiJ9.e30.AAAA"} {
		_, err := s.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidSignature, "token %q", tok)
	}
}

func TestVerify_SignedGarbagePayload(t *testing.T) {
	c := &clock{t: epoch}
	s := newService(t, testConfig(), c)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS512","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`not json`))
	sig, err := s.method.Sign(header+"."+payload, s.secret)
	require.NoError(t, err)

	_, err = s.Verify(header + "." + payload + "." + base64.RawURLEncoding.EncodeToString(sig))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_WrongIssuer(t *testing.T) {
	c := &clock{t: epoch}
	cfg := testConfig()
	cfg.Issuer = "someone-else"
	signer := newService(t, cfg, c)
	verifier := newService(t, testConfig(), c)

	tok, err := signer.Issue(Identity{UserID: 1, Name: "a"})
	require.NoError(t, err)
	c.t = epoch.Add(time.Minute)

	_, err = verifier.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestNewTokenService_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = ""
	_, err := NewTokenService(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Algorithm = "RS256"
	_, err = NewTokenService(cfg)
	assert.Error(t, err)
}

func TestIdentity_UnmarshalStringID(t *testing.T) {
	var id Identity
	require.NoError(t, json.Unmarshal([]byte(`["42","bob"]`), &id))
	assert.Equal(t, Identity{UserID: 42, Name: "bob"}, id)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &id))
	assert.Error(t, json.Unmarshal([]byte(`{"id":1}`), &id))
	assert.Error(t, json.Unmarshal([]byte(`["x","bob"]`), &id))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		err    error
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"bearer   abc", "abc", nil},
		{"", "", ErrMissingToken},
		{"Bearer", "", ErrMissingToken},
		{"Bearer    ", "", ErrMissingToken},
		{"Basic dXNlcjpwYXNz", "", ErrMissingToken},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		assert.Equal(t, tt.want, got, tt.header)
		assert.ErrorIs(t, err, tt.err, tt.header)
	}
}
