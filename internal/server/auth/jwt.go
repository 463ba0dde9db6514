// Package auth issues and reads the signed access tokens and opaque refresh
// secrets handed out by the authentication service.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claim names written into every access token.
const (
	ClaimTokenID  = "jti"
	ClaimUserID   = "nameid"
	ClaimUsername = "unique_name"
	ClaimEmail    = "email"
	ClaimExpiry   = "exp"
	ClaimIssuer   = "iss"
	ClaimAudience = "aud"
)

// refreshSecretSize is the number of random bytes behind a refresh secret.
const refreshSecretSize = 32

var signingMethod = jwt.SigningMethodHS512

var ErrInvalidConfig = errors.New("invalid token codec config")

// Claims is the decoded payload of an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"nameid"`
	Username string `json:"unique_name"`
	Email    string `json:"email"`
}

// Config holds the signing key and lifetimes. It is read once at startup.
type Config struct {
	Key        []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Codec signs access tokens with HS512 and generates refresh secrets.
// A Codec is safe for concurrent use.
type Codec struct {
	cfg Config
	now func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces time.Now; tests use it to move past token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if len(cfg.Key) == 0 {
		return nil, fmt.Errorf("%w: empty signing key", ErrInvalidConfig)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token lifetimes must be positive", ErrInvalidConfig)
	}

	c := &Codec{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// IssueAccessToken signs a token carrying the given identity. It expires
// AccessTTL after the current time.
func (c *Codec) IssueAccessToken(tokenID, userID, username, email string) (string, error) {
	now := c.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.AccessTTL)),
		},
		UserID:   userID,
		Username: username,
		Email:    email,
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	token := jwt.NewWithClaims(signingMethod, claims)

	tokenString, err := token.SignedString(c.cfg.Key)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// IssueRefreshSecret returns a new base64 encoded 256-bit random secret and
// the moment it stops being redeemable.
func (c *Codec) IssueRefreshSecret() (string, time.Time, error) {
	value, err := common.MakeRandBase64String(refreshSecretSize)
	if err != nil {
		return "", time.Time{}, err
	}
	return value, c.now().Add(c.cfg.RefreshTTL), nil
}

func (c *Codec) keyFunc(*jwt.Token) (any, error) {
	return c.cfg.Key, nil
}

// extractParser only checks the signature and the algorithm. Lifetime,
// issuer and audience are left to the caller.
func (c *Codec) extractParser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithJSONNumber(),
	)
}

// Parse decodes a token whose signature verifies, regardless of its
// lifetime. ok is false for anything malformed or signed differently.
func (c *Codec) Parse(tokenString string) (claims *Claims, ok bool) {
	claims = &Claims{}
	token, err := c.extractParser().ParseWithClaims(tokenString, claims, c.keyFunc)
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}

// ExtractClaim returns the named claim from a token with a valid signature.
// Expiry is not enforced. Numbers are rendered in base 10 and audience lists
// are comma joined. ok is false when the token is malformed or the claim is
// absent.
func (c *Codec) ExtractClaim(name, tokenString string) (value string, ok bool) {
	mc := jwt.MapClaims{}
	token, err := c.extractParser().ParseWithClaims(tokenString, mc, c.keyFunc)
	if err != nil || !token.Valid {
		return "", false
	}

	raw, found := mc[name]
	if !found || raw == nil {
		return "", false
	}

	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			s, isString := p.(string)
			if !isString {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	default:
		return "", false
	}
}

// ExtractExpiry returns the exp claim of a signed token as an absolute time.
func (c *Codec) ExtractExpiry(tokenString string) (time.Time, bool) {
	raw, ok := c.ExtractClaim(ClaimExpiry, tokenString)
	if !ok {
		return time.Time{}, false
	}

	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), true
	}

	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(secs) || secs < math.MinInt64 || secs >= math.MaxInt64 {
		return time.Time{}, false
	}

	whole := math.Floor(secs)
	return time.Unix(int64(whole), int64((secs-whole)*float64(time.Second))), true
}

// Validate fully checks a token presented on a protected call: signature,
// algorithm, expiry, not-before, issuer and audience.
func (c *Codec) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}
	if c.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(c.cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, c.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
