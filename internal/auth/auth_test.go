package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/internal/auth"
	"github.com/promptdeck/promptdeck/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerify(t *testing.T) {
	t.Parallel()
	v, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantID  domain.UserID
		wantErr error
	}{
		{
			name:   "sub_claim",
			token:  signToken(t, testSecret, jwt.MapClaims{"sub": "user-1", "email": "u@example.com"}),
			wantID: "user-1",
		},
		{
			name:   "user_id_claim",
			token:  signToken(t, testSecret, jwt.MapClaims{"user_id": "user-2"}),
			wantID: "user-2",
		},
		{
			name:    "empty",
			token:   "",
			wantErr: auth.ErrEmptyToken,
		},
		{
			name:    "wrong_secret",
			token:   signToken(t, "other-secret", jwt.MapClaims{"sub": "user-3"}),
			wantErr: auth.ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   "not.a.token",
			wantErr: auth.ErrInvalidToken,
		},
		{
			name:    "no_user_id",
			token:   signToken(t, testSecret, jwt.MapClaims{"email": "nobody@example.com"}),
			wantErr: auth.ErrMissingUserID,
		},
		{
			name: "expired",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-4",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantErr: auth.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u, err := v.Verify(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, u.ID)
			assert.False(t, u.Anonymous)
		})
	}
}

func TestVerifierNeedsSecret(t *testing.T) {
	t.Parallel()
	_, err := auth.NewVerifier("")
	assert.Error(t, err)
}
