package auth

import (
	"errors"
	"fmt"
	"gymbook/internal/domain"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const issuer = "gymbook"

var (
	ErrTokenExpired  = errors.New("token has expired")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingClaims = errors.New("invalid token or missing claims")
)

// jwtClaims defines the structure of the JWT payload.
type jwtClaims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens carrying a principal.
type TokenManager struct {
	secret     []byte
	expiration time.Duration
}

// NewTokenManager creates a TokenManager. An empty secret is a configuration error.
func NewTokenManager(secret string, expiration time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if expiration <= 0 {
		expiration = time.Hour
	}
	return &TokenManager{secret: []byte(secret), expiration: expiration}, nil
}

// Issue signs a token for p.
func (m *TokenManager) Issue(p domain.Principal) (string, error) {
	if p.ID.IsZero() || !p.Role.Valid() {
		return "", ErrMissingClaims
	}
	now := time.Now()
	claims := &jwtClaims{
		UserID: p.ID.Hex(),
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Authenticate verifies tokenString and resolves it to a principal. Unknown roles are rejected.
func (m *TokenManager) Authenticate(tokenString string) (domain.Principal, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, ErrTokenExpired
		}
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return domain.Principal{}, ErrMissingClaims
	}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return domain.Principal{}, ErrMissingClaims
	}
	return domain.Principal{ID: id, Role: claims.Role}, nil
}
