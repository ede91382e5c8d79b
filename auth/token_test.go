package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user@example.com",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("server-side-secret"))
	require.NoError(t, err)
	return s
}

func TestStaticTokenSource_Token(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: ErrNoToken},
		{name: "opaque token", token: "abc123"},
		{name: "valid jwt", token: signed(t, now.Add(time.Hour))},
		{name: "expired jwt", token: signed(t, now.Add(-time.Minute)), wantErr: ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStaticTokenSource(tt.token)
			s.now = func() time.Time { return now }

			got, err := s.Token(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.token, got)
		})
	}
}

func TestStaticTokenSource_Invalidate(t *testing.T) {
	s := NewStaticTokenSource("abc")
	calls := 0
	s.OnInvalidate(func() { calls++ })

	s.Invalidate()
	s.Invalidate()

	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Equal(t, 1, calls)

	s.Set("def")
	got, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "def", got)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	got, ok := TokenExpiry(signed(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestNewEnvTokenSource(t *testing.T) {
	t.Setenv("CB_TEST_TOKEN", "  from-env  ")
	got, err := NewEnvTokenSource("CB_TEST_TOKEN").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}
