package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/simplenotify/internal/models"
)

// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID string `json:"uid"`
	// Kind is the principal kind; empty means a user.
	Kind string `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

// ErrSubscriptionPrincipal is returned for tokens that claim to be a push subscription.
var ErrSubscriptionPrincipal = errors.New("jwt: subscriptions cannot act as principals")

// Principal returns the owner reference the token authenticates.
// Subscriptions are owned resources and never authenticate.
func (c *Claims) Principal() (models.OwnerRef, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.UserID), 10, 64)
	if err != nil || id == 0 {
		return models.OwnerRef{}, fmt.Errorf("jwt: invalid principal id %q", c.UserID)
	}
	kind := c.Kind
	if strings.TrimSpace(kind) == "" {
		kind = models.OwnerKindUser
	}
	principal := models.OwnerRef{Kind: kind, ID: uint(id)}.Normalised()
	if principal.Kind == models.OwnerKindSubscription {
		return models.OwnerRef{}, ErrSubscriptionPrincipal
	}
	return principal, nil
}

// AccessTokenInput holds the parameters used when generating a new access token.
type AccessTokenInput struct {
	Principal models.OwnerRef
	Audience  []string
}

// JWTService is responsible for issuing and validating JSON Web Tokens.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// GenerateAccessToken issues a signed JWT for the principal.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	principal := input.Principal.Normalised()
	if principal.ID == 0 {
		return "", errors.New("jwt: principal id is required")
	}
	if principal.Kind == models.OwnerKindSubscription {
		return "", ErrSubscriptionPrincipal
	}
	kind := principal.Kind
	if kind == models.OwnerKindUser {
		kind = ""
	}

	now := s.now()
	uid := strconv.FormatUint(uint64(principal.ID), 10)

	claims := &Claims{
		UserID: uid,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    s.issuer,
			Audience:  input.Audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and validates a signed JWT, returning the application claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}

	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}

	return &claims, nil
}
