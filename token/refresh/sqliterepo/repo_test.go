package sqliterepo_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/inevity/zhibot/token/refresh"
	"github.com/inevity/zhibot/token/refresh/refreshtest"
	"github.com/inevity/zhibot/token/refresh/sqliterepo"
	"github.com/stretchr/testify/require"
)

func TestRepo(t *testing.T) {
	refreshtest.RunRepoSuite(t, func(t *testing.T) refresh.Repo {
		repo, err := sqliterepo.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestRepo_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")

	repo, err := sqliterepo.Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, &refresh.StoredRefreshToken{
		ID:                    "id-1",
		Token:                 "tok-1",
		UserID:                "user-1",
		TokenType:             refresh.TokenTypeLongLived,
		AccessTokenExpiration: 3650 * 24 * time.Hour,
		CreatedAt:             time.Now(),
	}))
	require.NoError(t, repo.Close())

	reopened, err := sqliterepo.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, refresh.TokenTypeLongLived, got.TokenType)
	require.Equal(t, 3650*24*time.Hour, got.AccessTokenExpiration)
}
