package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/everycheese/everycheese/internal/config"
	"github.com/everycheese/everycheese/internal/models"
	"github.com/everycheese/everycheese/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "everycheese"

var ErrNoExpiry = errors.New("token has no exp claim")

// GenerateAccessToken creates a signed JWT access token for the user
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":                issuer,
		"sub":                u.Sub,
		"name":               u.Name,
		"email":              u.Email,
		"preferred_username": u.Username,
		"iat":                now.Unix(),
		"exp":                now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// ExpiresAt reads the exp claim without verifying the signature. Used to
// size blacklist entries for tokens presented at logout.
func ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// Verifier checks HS256 access tokens issued by GenerateAccessToken.
// It satisfies middleware.Verifier.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	return &claimsToken{claims: claims}, nil
}
