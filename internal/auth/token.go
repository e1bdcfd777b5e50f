// Package auth issues and verifies the signed bearer tokens handed out at
// registration and login.
package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"ctchen222/user-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed        = errors.New("token is malformed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token expired")
	ErrNotYetValid      = errors.New("token not yet valid")
	ErrInvalidClaims    = errors.New("token claims are invalid")
	ErrMissingToken     = errors.New("authorization token missing")
)

// Identity is the claim data embedded in every token. On the wire it is
// the two element array [userId, name].
type Identity struct {
	UserID int64
	Name   string
}

func (i Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{i.UserID, i.Name})
}

func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("identity: want 2 elements, got %d", len(raw))
	}

	// Older tokens carried the id as a string.
	var id json.Number
	dec := json.NewDecoder(bytes.NewReader(bytes.Trim(raw[0], `"`)))
	dec.UseNumber()
	if err := dec.Decode(&id); err != nil {
		return fmt.Errorf("identity: id: %w", err)
	}
	userID, err := strconv.ParseInt(id.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("identity: id: %w", err)
	}

	var name string
	if err := json.Unmarshal(raw[1], &name); err != nil {
		return fmt.Errorf("identity: name: %w", err)
	}

	i.UserID = userID
	i.Name = name
	return nil
}

// Claims is the full claim set of an issued token.
type Claims struct {
	Data Identity `json:"data"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies tokens with a shared HMAC secret.
type TokenService struct {
	secret    []byte
	method    *jwt.SigningMethodHMAC
	issuer    string
	audience  string
	notBefore time.Duration
	ttl       time.Duration
	leeway    time.Duration
	now       func() time.Time
}

type Option func(*TokenService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService builds a TokenService from the token section of the config.
func NewTokenService(cfg config.TokenConfig, opts ...Option) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", cfg.Algorithm)
	}

	s := &TokenService{
		secret:    []byte(cfg.Secret),
		method:    method,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		notBefore: cfg.NotBefore,
		ttl:       cfg.TTL,
		leeway:    cfg.Leeway,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue returns a compact signed token carrying identity.
func (s *TokenService) Issue(identity Identity) (string, error) {
	now := s.now().Truncate(time.Second)

	claims := Claims{
		Data: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(s.notBefore)),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return token, nil
}

// Verify checks structure, signature, validity window and issuer/audience,
// in that order, and returns the embedded identity.
func (s *TokenService) Verify(tokenString string) (Identity, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return Identity{}, ErrMalformed
	}

	// The MAC is checked before anything is decoded so that any altered
	// byte reports a signature failure rather than a parse failure.
	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return Identity{}, ErrInvalidSignature
	}
	if err := s.method.Verify(parts[0]+"."+parts[1], sig, s.secret); err != nil {
		return Identity{}, ErrInvalidSignature
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{s.method.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return Identity{}, classify(err)
	}
	if err := s.validate(claims); err != nil {
		return Identity{}, err
	}
	return claims.Data, nil
}

// validate enforces nbf <= now <= exp and the issuer/audience. Leeway
// widens the window at nbf only; exp is exact.
func (s *TokenService) validate(c *Claims) error {
	now := s.now()
	if c.ExpiresAt == nil {
		return ErrInvalidClaims
	}
	if now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Add(s.leeway).Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	if s.issuer != "" && c.Issuer != s.issuer {
		return ErrInvalidClaims
	}
	if s.audience != "" && !slices.Contains(c.Audience, s.audience) {
		return ErrInvalidClaims
	}
	return nil
}

// classify maps parse failures onto the package errors. Claims are
// validated separately, so only structure and signature errors arrive here.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
