package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrDeviceMismatch  = errors.New("auth: token issued for another device")
	ErrKindMismatch    = errors.New("auth: token issued for another envelope kind")
	ErrPayloadMismatch = errors.New("auth: payload does not match token digest")
)

// Claims bind a token to one device, one envelope kind and one payload.
type Claims struct {
	DeviceID string `json:"device_id"`
	Kind     string `json:"kind"`
	Digest   string `json:"digest"`
	jwt.RegisteredClaims
}

type Signer struct {
	Secret []byte
	Issuer string
	ExpMin int
}

func (s *Signer) Sign(deviceID, kind string, payload []byte) (string, error) {
	now := time.Now()
	exp := now.Add(time.Duration(s.ExpMin) * time.Minute)
	claims := Claims{
		DeviceID: deviceID, Kind: kind, Digest: Digest(payload),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: s.Issuer, IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(exp)},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Secret)
}

func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) { return s.Secret, nil }, opts...)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// Verify parses tokenStr and checks it was issued for this envelope.
func (s *Signer) Verify(tokenStr, deviceID, kind string, payload []byte) error {
	c, err := s.Parse(tokenStr)
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	switch {
	case c.DeviceID != deviceID:
		return fmt.Errorf("%w: %q", ErrDeviceMismatch, c.DeviceID)
	case c.Kind != kind:
		return fmt.Errorf("%w: %q", ErrKindMismatch, c.Kind)
	case c.Digest != Digest(payload):
		return ErrPayloadMismatch
	}
	return nil
}

// Digest is the hex SHA-256 of payload in compact JSON form, so the digest
// survives re-encoding of the envelope. Payloads that are not valid JSON are
// hashed as given.
func Digest(payload []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err == nil {
		payload = buf.Bytes()
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
