package auth

import (
	"gymbook/internal/domain"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIssueAndAuthenticate(t *testing.T) {
	m, err := NewTokenManager("secret", time.Hour)
	require.NoError(t, err)

	p := domain.Principal{ID: primitive.NewObjectID(), Role: domain.RoleTrainer}
	token, err := m.Issue(p)
	require.NoError(t, err)

	got, err := m.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewTokenManager("one", time.Hour)
	verifier, _ := NewTokenManager("two", time.Hour)

	token, err := issuer.Issue(domain.Principal{ID: primitive.NewObjectID(), Role: domain.RoleVisitor})
	require.NoError(t, err)

	_, err = verifier.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	m, _ := NewTokenManager("secret", time.Hour)
	claims := &jwtClaims{
		UserID: primitive.NewObjectID().Hex(),
		Role:   domain.RoleVisitor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Authenticate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthenticateRejectsUnknownRole(t *testing.T) {
	m, _ := NewTokenManager("secret", time.Hour)
	claims := &jwtClaims{
		UserID: primitive.NewObjectID().Hex(),
		Role:   domain.Role("admin"),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Authenticate(token)
	assert.ErrorIs(t, err, ErrMissingClaims)
}

func TestIssueRequiresKnownRole(t *testing.T) {
	m, _ := NewTokenManager("secret", time.Hour)
	_, err := m.Issue(domain.Principal{ID: primitive.NewObjectID(), Role: "guest"})
	assert.ErrorIs(t, err, ErrMissingClaims)

	_, err = NewTokenManager("", time.Hour)
	assert.Error(t, err)
}
