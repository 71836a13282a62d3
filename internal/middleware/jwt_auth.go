package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
)

// JWTVerifier validates HMAC-signed tokens issued by the StackIt auth service
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) VerifyToken(_ context.Context, tokenString string) (uint, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	if claims.UserID == 0 {
		return 0, errors.New("token carries no user id")
	}
	return claims.UserID, nil
}

// Sign issues a token for userID; used by tooling and tests that need a valid credential
func (v *JWTVerifier) Sign(userID uint, email string, ttl time.Duration) (string, error) {
	claims := &models.JwtCustomClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
