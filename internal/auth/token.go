package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
)

// TokenKind distinguishes what a bearer token may be used for.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
	KindReset   TokenKind = "reset"
)

func (k TokenKind) valid() bool {
	return k == KindAccess || k == KindRefresh || k == KindReset
}

// TokenConfig is loaded once at startup and never changes while serving.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = time.Hour
)

// IssuedToken is a signed token and the moment it stops validating.
type IssuedToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Claims is the validated content of a token. Subject is a decimal user id
// for access and refresh tokens and an email address for reset tokens.
type Claims struct {
	ID        string
	Subject   string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UserID parses Subject as a user id.
func (c Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: subject is not a user id", apperr.ErrTokenInvalid)
	}
	return id, nil
}

type tokenClaims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 tokens. There is no revocation list:
// a token stays valid until it expires.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService validates cfg and fills in default lifetimes.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token service: empty signing secret")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	s := &TokenService{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueAccess returns a short-lived token identifying userID.
func (s *TokenService) IssueAccess(userID uint64) (IssuedToken, error) {
	return s.issue(strconv.FormatUint(userID, 10), KindAccess, s.cfg.AccessTTL)
}

// IssueRefresh returns a long-lived token that can only be exchanged for a
// new access token.
func (s *TokenService) IssueRefresh(userID uint64) (IssuedToken, error) {
	return s.issue(strconv.FormatUint(userID, 10), KindRefresh, s.cfg.RefreshTTL)
}

// IssueReset returns a password reset token bound to email.
func (s *TokenService) IssueReset(email string) (IssuedToken, error) {
	if email == "" {
		return IssuedToken{}, apperr.Invalid("email", "cannot be blank")
	}
	return s.issue(email, KindReset, s.cfg.ResetTTL)
}

func (s *TokenService) issue(subject string, kind TokenKind, ttl time.Duration) (IssuedToken, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)
	c := tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return IssuedToken{Token: signed, Expires: exp}, nil
}

// Validate checks signature, expiry and kind. Expiry is reported before a
// kind mismatch, so an expired refresh token presented as an access token
// yields apperr.ErrTokenExpired.
func (s *TokenService) Validate(raw string, expected TokenKind) (Claims, error) {
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", apperr.ErrTokenInvalid)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	var c tokenClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperr.ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", apperr.ErrTokenInvalid, err)
	}
	if !c.Kind.valid() || c.Subject == "" {
		return Claims{}, fmt.Errorf("%w: malformed claims", apperr.ErrTokenInvalid)
	}
	if c.Kind != expected {
		return Claims{}, fmt.Errorf("%w: got %s, want %s", apperr.ErrTokenKindMismatch, c.Kind, expected)
	}
	out := Claims{ID: c.ID, Subject: c.Subject, Kind: c.Kind}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
