// Package session mints and verifies the signed bearer tokens that back
// the auth_token cookie. Validity derives entirely from the HMAC
// signature and the embedded expiry — nothing is stored server-side and
// reads never extend a token's lifetime.
//
// Two independent verification paths exist on purpose: Verify uses the
// golang-jwt runtime, VerifyLite is a minimal HS256 check over stdlib
// crypto usable where the full library is unavailable. Both must reach
// the same accept/reject decision for every input; the request gate
// runs the lite path while token minting and session reads use the full
// one.
package session

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the absolute token lifetime, fixed at mint time.
const DefaultTTL = 30 * 24 * time.Hour

// Reason classifies why verification rejected a token. Callers treat
// every reason identically (deny); reasons exist for diagnostics only.
type Reason string

const (
	ReasonMalformed    Reason = "malformed"
	ReasonExpired      Reason = "expired"
	ReasonBadSignature Reason = "bad-signature"
	ReasonMissingField Reason = "missing-field"
)

// VerifyError is the rejection returned by both verification paths.
type VerifyError struct {
	Reason Reason
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("session: token rejected (%s)", e.Reason)
}

// Claims is the payload embedded in every session token.
type Claims struct {
	UserID                string
	Email                 string
	RegistrationCompleted bool
	IssuedAt              time.Time
	ExpiresAt             time.Time
}

// tokenClaims is the wire shape. Field names match the cookie format
// consumed by existing clients.
type tokenClaims struct {
	UserID                string `json:"userId"`
	Email                 string `json:"email"`
	RegistrationCompleted bool   `json:"registrationCompleted"`
	jwt.RegisteredClaims
}

// Mint signs a token for the given identity with a fixed absolute
// expiry of ttl from now. Only identity fields are embedded; nothing
// from the request is trusted.
func Mint(secret []byte, userID, email string, registrationCompleted bool, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	claims := tokenClaims{
		UserID:                userID,
		Email:                 email,
		RegistrationCompleted: registrationCompleted,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify is the full-runtime verification path. It checks signature and
// expiry only; it never re-signs or extends the token.
func Verify(secret []byte, token string) (*Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, &VerifyError{Reason: ReasonExpired}
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, &VerifyError{Reason: ReasonBadSignature}
		default:
			return nil, &VerifyError{Reason: ReasonMalformed}
		}
	}
	if !parsed.Valid {
		return nil, &VerifyError{Reason: ReasonBadSignature}
	}
	return claimsFromToken(claims)
}

// litePayload mirrors tokenClaims for the constrained path, decoded
// without the JWT library. Numeric claims stay json.Number so that
// fractional timestamps decode exactly as the full runtime decodes
// them.
type litePayload struct {
	UserID                string       `json:"userId"`
	Email                 string       `json:"email"`
	RegistrationCompleted bool         `json:"registrationCompleted"`
	IssuedAt              *json.Number `json:"iat"`
	NotBefore             *json.Number `json:"nbf"`
	ExpiresAt             *json.Number `json:"exp"`
}

// numericDate converts a JSON numeric claim the way the JWT runtime
// does: fractional seconds are accepted, then truncated to whole
// seconds.
func numericDate(n json.Number) (time.Time, error) {
	f, err := n.Float64()
	if err != nil {
		return time.Time{}, err
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).Truncate(time.Second), nil
}

type liteHeader struct {
	Alg string `json:"alg"`
}

// VerifyLite is the constrained-environment verification path: a
// hand-checked HS256 compact token using only stdlib crypto. It must
// agree with Verify on every input.
func VerifyLite(secret []byte, token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, &VerifyError{Reason: ReasonMalformed}
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, &VerifyError{Reason: ReasonMalformed}
	}
	var header liteHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, &VerifyError{Reason: ReasonMalformed}
	}
	if header.Alg != "HS256" {
		return nil, &VerifyError{Reason: ReasonBadSignature}
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, &VerifyError{Reason: ReasonMalformed}
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(parts[0]))
	mac.Write([]byte{'.'})
	mac.Write([]byte(parts[1]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, &VerifyError{Reason: ReasonBadSignature}
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, &VerifyError{Reason: ReasonMalformed}
	}
	dec := json.NewDecoder(bytes.NewReader(payloadJSON))
	var payload litePayload
	if err := dec.Decode(&payload); err != nil {
		return nil, &VerifyError{Reason: ReasonMalformed}
	}

	// Claim validation order matches the full runtime: expiry first,
	// then not-before (optional claims, but enforced when present),
	// then the fields this service requires.
	now := time.Now()
	var exp time.Time
	if payload.ExpiresAt != nil {
		var err error
		exp, err = numericDate(*payload.ExpiresAt)
		if err != nil {
			return nil, &VerifyError{Reason: ReasonMalformed}
		}
		if !now.Before(exp) {
			return nil, &VerifyError{Reason: ReasonExpired}
		}
	}
	if payload.NotBefore != nil {
		nbf, err := numericDate(*payload.NotBefore)
		if err != nil {
			return nil, &VerifyError{Reason: ReasonMalformed}
		}
		if now.Before(nbf) {
			return nil, &VerifyError{Reason: ReasonMalformed}
		}
	}
	if payload.ExpiresAt == nil {
		return nil, &VerifyError{Reason: ReasonMissingField}
	}
	if payload.UserID == "" || payload.Email == "" {
		return nil, &VerifyError{Reason: ReasonMissingField}
	}

	var iat time.Time
	if payload.IssuedAt != nil {
		var err error
		iat, err = numericDate(*payload.IssuedAt)
		if err != nil {
			return nil, &VerifyError{Reason: ReasonMalformed}
		}
	}

	return &Claims{
		UserID:                payload.UserID,
		Email:                 payload.Email,
		RegistrationCompleted: payload.RegistrationCompleted,
		IssuedAt:              iat.UTC(),
		ExpiresAt:             exp.UTC(),
	}, nil
}

func claimsFromToken(tc tokenClaims) (*Claims, error) {
	if tc.ExpiresAt == nil {
		return nil, &VerifyError{Reason: ReasonMissingField}
	}
	if tc.UserID == "" || tc.Email == "" {
		return nil, &VerifyError{Reason: ReasonMissingField}
	}
	c := &Claims{
		UserID:                tc.UserID,
		Email:                 tc.Email,
		RegistrationCompleted: tc.RegistrationCompleted,
		ExpiresAt:             tc.ExpiresAt.Time.UTC(),
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time.UTC()
	}
	return c, nil
}
