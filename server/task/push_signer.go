// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// BodyHashClaim is the JWT claim holding the hex SHA-256 of the signed payload.
const BodyHashClaim = "request_body_sha256"

// JWTSigner signs push notification payloads with an ES256 key so that
// receivers can verify them against the agent's published JWKS.
type JWTSigner struct {
	key    jwk.Key
	public jwk.Set
	now    func() time.Time
}

// NewJWTSigner generates a fresh P-256 key identified by kid.
func NewJWTSigner(kid string) (*JWTSigner, error) {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return NewJWTSignerFromKey(kid, raw)
}

// NewJWTSignerFromKey wraps an existing ECDSA P-256 private key.
func NewJWTSignerFromKey(kid string, raw *ecdsa.PrivateKey) (*JWTSigner, error) {
	key, err := jwk.Import(raw)
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, err
	}

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	for k, v := range map[string]any{
		jwk.KeyIDKey:     kid,
		jwk.AlgorithmKey: jwa.ES256(),
		jwk.KeyUsageKey:  "sig",
	} {
		if err := pub.Set(k, v); err != nil {
			return nil, err
		}
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, err
	}

	return &JWTSigner{key: key, public: set, now: time.Now}, nil
}

// Sign returns a compact JWT binding body to the signing time.
func (s *JWTSigner) Sign(body []byte) (string, error) {
	sum := sha256.Sum256(body)
	tok, err := jwt.NewBuilder().
		IssuedAt(s.now()).
		Claim(BodyHashClaim, hex.EncodeToString(sum[:])).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.ES256(), s.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// JWKS returns the public key set receivers verify tokens against.
func (s *JWTSigner) JWKS() jwk.Set { return s.public }

// ServeHTTP serves the public key set as JSON.
func (s *JWTSigner) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	b, err := json.Marshal(s.public)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

// VerifyPushToken checks token against keys and reports whether it was
// issued for body.
func VerifyPushToken(keys jwk.Set, token string, body []byte) error {
	tok, err := jwt.Parse([]byte(token), jwt.WithKeySet(keys))
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	var claimed string
	if err := tok.Get(BodyHashClaim, &claimed); err != nil {
		return fmt.Errorf("missing %s claim: %w", BodyHashClaim, err)
	}
	sum := sha256.Sum256(body)
	if claimed != hex.EncodeToString(sum[:]) {
		return fmt.Errorf("payload hash mismatch")
	}
	return nil
}
