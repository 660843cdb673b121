package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-console/internal/models"
	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
)

func TestMemorySessionRepositoryExpiry(t *testing.T) {
	repo := NewMemorySessionRepository()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	session := &models.Session{ID: "s-1", Token: "tok", DisplayName: "Registrar"}
	require.NoError(t, repo.Save(ctx, session, time.Hour))

	got, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, "Registrar", got.DisplayName)

	now = now.Add(2 * time.Hour)
	_, err = repo.Get(ctx, "s-1")
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestMemorySessionRepositoryDelete(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &models.Session{ID: "s-2"}, 0))
	require.NoError(t, repo.Delete(ctx, "s-2"))
	_, err := repo.Get(ctx, "s-2")
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestRedisSessionRepositoryWithoutClient(t *testing.T) {
	repo := NewRedisSessionRepository(nil, nil)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &models.Session{ID: "s-3"}, time.Minute))
	_, err := repo.Get(ctx, "s-3")
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
	require.NoError(t, repo.Delete(ctx, "s-3"))
	require.NoError(t, repo.Close())
}
