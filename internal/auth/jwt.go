// Package auth issues and validates the HS256 access tokens that identify a
// provider to the leaderboard API.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants for the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Token expiration durations.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// Issuer is set on every token and required on validation.
const Issuer = "leaderhub"

// DefaultLeeway is the clock skew tolerated on exp/iat/nbf.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when a token fails parsing, signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrWrongTokenType is returned when a refresh token is presented as an access token or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrInvalidProviderID is returned when the subject is not a positive integer id.
	ErrInvalidProviderID = errors.New("provider id must be a positive integer")
)

// Claims are the JWT claims issued to providers. Subject holds the decimal
// provider id.
type Claims struct {
	jwt.RegisteredClaims
	Position string `json:"position,omitempty"` // job title, e.g. "APP" or "EMT"
	Type     string `json:"typ"`
}

// ProviderID returns the subject claim, the provider's entity id.
func (c *Claims) ProviderID() string {
	return c.Subject
}

// JWTService signs tokens with the current secret and accepts tokens signed
// with either the current or the previous secret so that secrets can rotate
// without logging providers out.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) { s.leeway = d }
}

// WithPreviousSecret accepts tokens signed with secret during rotation.
// An empty secret is ignored.
func WithPreviousSecret(secret string) Option {
	return func(s *JWTService) {
		if secret != "" {
			s.previousSecret = []byte(secret)
		}
	}
}

// NewJWTService creates a service that signs with secret.
func NewJWTService(secret string, opts ...Option) *JWTService {
	s := &JWTService{
		currentSecret: []byte(secret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateAccessToken issues a 15 minute access token for a provider.
func (s *JWTService) GenerateAccessToken(providerID, position string) (string, error) {
	if err := checkProviderID(providerID); err != nil {
		return "", err
	}
	return s.sign(providerID, position, TokenTypeAccess, AccessTokenExpiry)
}

// GenerateRefreshToken issues a 7 day refresh token for a provider.
func (s *JWTService) GenerateRefreshToken(providerID string) (string, error) {
	if err := checkProviderID(providerID); err != nil {
		return "", err
	}
	return s.sign(providerID, "", TokenTypeRefresh, RefreshTokenExpiry)
}

func (s *JWTService) sign(providerID, position, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   providerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Position: position,
		Type:     typ,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.currentSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer and expiry, trying the previous
// secret when the current one does not verify.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if checkProviderID(claims.Subject) != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken is ValidateToken restricted to access tokens.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func checkProviderID(id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return ErrInvalidProviderID
	}
	return nil
}
