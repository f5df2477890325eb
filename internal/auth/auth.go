// Package auth issues and validates the bearer tokens guarding the status API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoSecret     = errors.New("token secret is empty")
)

// Claims are the validated contents of a token.
type Claims struct {
	Subject string
	Exp     int64
}

// Service signs and validates HS256 tokens with a shared secret.
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
}

// NewService creates a service. exp defaults to 24 hours.
func NewService(secret string, exp time.Duration) (*Service, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if exp <= 0 {
		exp = 24 * time.Hour
	}
	return &Service{jwtSecret: []byte(secret), tokenExp: exp}, nil
}

// GenerateToken generates a token for subject.
func (s *Service) GenerateToken(subject string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(s.tokenExp).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a token, with or without the "Bearer " prefix.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	subject, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &Claims{Subject: subject, Exp: int64(exp)}, nil
}
