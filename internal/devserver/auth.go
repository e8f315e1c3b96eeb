package devserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Identity is the authenticated user extracted from a collaboration token.
type Identity struct {
	UserID   string `json:"sub"`
	UserName string `json:"name"`
	Exp      int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// IssueToken mints a signed collaboration token: base64(claims).base64(hmac).
func IssueToken(secret []byte, userID, userName string, ttl time.Duration) (string, error) {
	claims := Identity{UserID: userID, UserName: userName, Exp: time.Now().Add(ttl).Unix()}
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return payload + "." + signToken(secret, payload), nil
}

// ParseToken verifies the signature and expiry and returns the identity.
func ParseToken(secret []byte, token string) (Identity, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Identity{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(parts[1]), []byte(signToken(secret, parts[0]))) {
		return Identity{}, ErrInvalidToken
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	var claims Identity
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return Identity{}, ErrInvalidToken
	}
	if claims.UserID == "" || claims.Exp == 0 {
		return Identity{}, ErrInvalidToken
	}
	if time.Now().Unix() >= claims.Exp {
		return Identity{}, ErrExpiredToken
	}
	return claims, nil
}

func signToken(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
