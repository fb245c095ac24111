package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("token invalid")
	ErrInvalidClaims = errors.New("token claims invalid")
)

// JWT issues and verifies HS256 access tokens.
type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl}
}

// GenerateAccessToken signs a token for the user. The token version lets a
// logout or a ban invalidate every token issued before it.
func (j *JWT) GenerateAccessToken(userID, tokenVersion uint64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":       userID,
		"token_version": tokenVersion,
		"iat":           now.Unix(),
		"exp":           now.Add(j.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWT) VerifyJWT(tokenString string) (*jwt.Token, error) {
	// parse token
	jwtToken, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, err
	}

	// isValid
	if !jwtToken.Valid {
		return nil, ErrInvalidToken
	}

	return jwtToken, nil
}

// GetDataFromToken extracts the user id and token version
func GetDataFromToken(token *jwt.Token) (uint64, uint64, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, 0, ErrInvalidClaims
	}

	// jwt MapClaims numbers are float64
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, 0, ErrInvalidClaims
	}
	tokenVersion, ok := claims["token_version"].(float64)
	if !ok {
		return 0, 0, ErrInvalidClaims
	}

	return uint64(userID), uint64(tokenVersion), nil
}
