package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseValidToken(t *testing.T) {
	id := uuid.New()
	p := NewTokenParser("secret")

	actor, err := p.Parse(sign(t, "secret", jwt.MapClaims{
		"sub":   id.String(),
		"name":  "Asha",
		"roles": []string{"manager", "sales"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	}))
	require.NoError(t, err)
	assert.Equal(t, id, actor.ID)
	assert.Equal(t, "Asha", actor.Name)
	assert.True(t, actor.HasRole("manager"))
	assert.False(t, actor.HasRole("director"))
}

func TestParseRejectsWrongSecret(t *testing.T) {
	p := NewTokenParser("secret")
	_, err := p.Parse(sign(t, "other", jwt.MapClaims{"sub": uuid.New().String()}))
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	p := NewTokenParser("secret")
	_, err := p.Parse(sign(t, "secret", jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}))
	assert.Error(t, err)
}

func TestParseRejectsNonUUIDSubject(t *testing.T) {
	p := NewTokenParser("secret")
	_, err := p.Parse(sign(t, "secret", jwt.MapClaims{
		"sub": "service-account",
		"exp": time.Now().Add(time.Hour).Unix(),
	}))
	assert.Error(t, err)
}
