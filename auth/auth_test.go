package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestStaticToken(t *testing.T) {
	_, err := StaticToken("  ").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)

	token, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestSessionToken(t *testing.T) {
	s := &SessionToken{}
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)

	s.Set("t-1")
	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t-1", token)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestUserID(t *testing.T) {
	testCases := []struct {
		name     string
		claims   jwt.MapClaims
		secret   string
		verify   string
		expected string
		hasError bool
	}{
		{name: "userId claim", claims: jwt.MapClaims{"userId": "u-1"}, expected: "u-1"},
		{name: "sub claim", claims: jwt.MapClaims{"sub": "u-2"}, expected: "u-2"},
		{name: "numeric id", claims: jwt.MapClaims{"id": 42}, expected: "42"},
		{name: "no user", claims: jwt.MapClaims{"role": "user"}, hasError: true},
		{name: "verified", claims: jwt.MapClaims{"sub": "u-3"}, secret: "s3cret", verify: "s3cret", expected: "u-3"},
		{name: "bad signature", claims: jwt.MapClaims{"sub": "u-3"}, secret: "s3cret", verify: "other", hasError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			secret := tc.secret
			if secret == "" {
				secret = "unused"
			}
			userID, err := UserID(sign(t, tc.claims, secret), tc.verify)
			if tc.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, userID)
		})
	}
}

func TestUserID_Malformed(t *testing.T) {
	_, err := UserID("not-a-jwt", "")
	assert.Error(t, err)
}
