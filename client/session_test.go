package client

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/pulse/models"
)

func signedResponse(t *testing.T, exp time.Time) *models.AuthResponse {
	t.Helper()
	claims := &models.TokenClaims{
		UserID:           "u1",
		Username:         "alice",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return &models.AuthResponse{Token: token, User: &models.User{ID: "u1", Username: "alice"}}
}

func TestNewSessionReadsExpiry(t *testing.T) {
	exp := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)
	s, err := NewSession(signedResponse(t, exp))
	require.NoError(t, err)

	assert.Equal(t, "u1", s.User.ID)
	assert.True(t, s.ExpiresAt.Equal(exp))
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(exp))

	_, err = NewSession(&models.AuthResponse{Token: "not-a-jwt", User: &models.User{}})
	assert.Error(t, err)
}

func TestStores(t *testing.T) {
	bolt, err := OpenBoltSessionStore(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	stores := map[string]SessionStore{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load()
			assert.ErrorIs(t, err, ErrNoSession)

			s, err := NewSession(signedResponse(t, time.Now().Add(time.Hour)))
			require.NoError(t, err)
			require.NoError(t, store.Save(s))

			got, err := store.Load()
			require.NoError(t, err)
			assert.Equal(t, s.Token, got.Token)
			assert.Equal(t, s.User.ID, got.User.ID)
			assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

			require.NoError(t, store.Clear())
			_, err = store.Load()
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := OpenBoltSessionStore(path)
	require.NoError(t, err)
	s, err := NewSession(signedResponse(t, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, store.Save(s))
	require.NoError(t, store.Close())

	store, err = OpenBoltSessionStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, s.Token, got.Token)
}
