package dispatch

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const signatureIssuer = "Upstash"

// SignatureHeader carries the JWT that authenticates a webhook delivery.
const SignatureHeader = "Upstash-Signature"

var ErrInvalidSignature = errors.New("invalid webhook signature")

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Sign produces a delivery signature in the format QStash uses: an HS256 JWT whose
// body claim is the base64url SHA-256 of the request body.
func Sign(key, url string, body []byte, now time.Time) (string, error) {
	claims := signatureClaims{
		Body: bodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    signatureIssuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// Verifier checks delivery signatures against the current and next signing keys.
type Verifier struct {
	keys []string
}

func NewVerifier(currentKey, nextKey string) *Verifier {
	v := &Verifier{}
	for _, k := range []string{currentKey, nextKey} {
		if k != "" {
			v.keys = append(v.keys, k)
		}
	}
	return v
}

// Enabled reports whether any signing key is configured.
func (v *Verifier) Enabled() bool {
	return len(v.keys) > 0
}

// Verify accepts the token if it was signed by either key for url and covers body.
func (v *Verifier) Verify(token, url string, body []byte) error {
	if token == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}
	var lastErr error
	for _, key := range v.keys {
		if err := verifyWithKey(token, url, body, key); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSignature, lastErr)
}

func verifyWithKey(token, url string, body []byte, key string) error {
	claims := &signatureClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signatureIssuer),
		jwt.WithSubject(url),
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return err
	}
	want := bodyHash(body)
	got := strings.TrimRight(claims.Body, "=")
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return errors.New("body hash mismatch")
	}
	return nil
}
