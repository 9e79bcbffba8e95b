// Package auth issues and verifies the HS256 bearer tokens used by the API.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "indiec"

// Claims carries the user id as the subject plus the account email.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Identity is what a verified token tells the API about its caller.
type Identity struct {
	UserID int64
	Email  string
}

func GenerateToken(userID int64, email string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Email: email,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString. Expired tokens yield common.ErrTokenExpired,
// any other failure common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, common.ErrInvalidToken
	}

	if !token.Valid {
		return Identity{}, common.ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{UserID: id, Email: claims.Email}, nil
}

// GetUserIDFromToken is ParseToken reduced to the subject.
func GetUserIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	ident, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return 0, err
	}
	return ident.UserID, nil
}
