package rest

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner issues short-lived device tokens for backend requests
type TokenSigner struct {
	DeviceID string
	Secret   string
	TTL      time.Duration
}

// DeviceClaims identifies the device and tenant a request acts for
type DeviceClaims struct {
	Device string `json:"device"`
	Org    string `json:"org"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

const tokenType = "device_sync"

// Sign creates an HS256 token for one organization
func (s *TokenSigner) Sign(org string) (string, error) {
	if s.Secret == "" {
		return "", fmt.Errorf("token secret is not configured")
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	now := time.Now()
	claims := DeviceClaims{
		Device: s.DeviceID,
		Org:    org,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.Secret))
}

// ValidateDeviceToken checks a device token and returns its claims
func ValidateDeviceToken(tokenString, secret string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Type != tokenType {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
