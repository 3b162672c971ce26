package auth

import (
	"fmt"

	"loremap-server/internal/shared/config"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity the curation frontend attaches to requests.
// Tokens are issued by the account service; this server only validates them.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Tier     string `json:"tier"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func getJWTSecret() (string, error) {
	if config.GlobalConfig == nil || config.GlobalConfig.Auth.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret is not configured")
	}
	return config.GlobalConfig.Auth.JWTSecret, nil
}

func ValidateJWT(tokenString string) (*Claims, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return nil, fmt.Errorf("cannot validate JWT: %w", err)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
