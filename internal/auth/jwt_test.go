package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "alice",
		"iss": "realchat-auth",
		"aud": "realchat-api",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestNewVerifier_EmptySecretDisables(t *testing.T) {
	assert.Nil(t, NewVerifier("", "iss", "aud"))
}

func TestVerify(t *testing.T) {
	v := NewVerifier("secret", "realchat-auth", "realchat-api")

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"
	wrongAudience := validClaims()
	wrongAudience["aud"] = "other-api"
	noSubject := validClaims()
	delete(noSubject, "sub")

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{name: "Valid", token: sign(t, "secret", validClaims()), want: "alice"},
		{name: "Wrong secret", token: sign(t, "other", validClaims()), wantErr: true},
		{name: "Expired", token: sign(t, "secret", expired), wantErr: true},
		{name: "Wrong issuer", token: sign(t, "secret", wrongIssuer), wantErr: true},
		{name: "Wrong audience", token: sign(t, "secret", wrongAudience), wantErr: true},
		{name: "No subject", token: sign(t, "secret", noSubject), wantErr: true},
		{name: "Garbage", token: "not.a.token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	v := NewVerifier("secret", "", "")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims()).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
