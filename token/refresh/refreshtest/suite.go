// Package refreshtest holds behaviour tests shared by every refresh.Repo implementation.
package refreshtest

import (
	"context"
	"testing"
	"time"

	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/token/refresh"
	"github.com/stretchr/testify/require"
)

// RunRepoSuite exercises a fresh repo returned by newRepo for each subtest.
func RunRepoSuite(t *testing.T, newRepo func(t *testing.T) refresh.Repo) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	token := func(id string, created time.Time) *refresh.StoredRefreshToken {
		return &refresh.StoredRefreshToken{
			ID:                    id,
			Token:                 "tok-" + id,
			UserID:                "user-1",
			ClientID:              "https://open.bot.tmall.com",
			ClientName:            "Tmall",
			TokenType:             refresh.TokenTypeNormal,
			AccessTokenExpiration: 30 * time.Minute,
			CreatedAt:             created,
		}
	}

	t.Run("upsert then get by token and id", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, token("a", base)))

		got, err := repo.Get(ctx, "tok-a")
		require.NoError(t, err)
		require.Equal(t, "a", got.ID)
		require.Equal(t, "Tmall", got.ClientName)
		require.Equal(t, 30*time.Minute, got.AccessTokenExpiration)
		require.True(t, got.CreatedAt.Equal(base))
		require.True(t, got.LastUsedAt.IsZero())

		byID, err := repo.GetByID(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, "tok-a", byID.Token)
	})

	t.Run("upsert updates existing", func(t *testing.T) {
		repo := newRepo(t)
		rt := token("a", base)
		require.NoError(t, repo.Upsert(ctx, rt))
		rt.LastUsedAt = base.Add(time.Hour)
		require.NoError(t, repo.Upsert(ctx, rt))

		got, err := repo.GetByID(ctx, "a")
		require.NoError(t, err)
		require.True(t, got.LastUsedAt.Equal(base.Add(time.Hour)))
	})

	t.Run("missing tokens", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "nope")
		require.ErrorIs(t, err, zerrors.ErrNotFound)
		_, err = repo.GetByID(ctx, "nope")
		require.ErrorIs(t, err, zerrors.ErrNotFound)
		require.ErrorIs(t, repo.Delete(ctx, "nope"), zerrors.ErrNotFound)
	})

	t.Run("delete removes both lookups", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, token("a", base)))
		require.NoError(t, repo.Delete(ctx, "tok-a"))

		_, err := repo.Get(ctx, "tok-a")
		require.ErrorIs(t, err, zerrors.ErrNotFound)
		_, err = repo.GetByID(ctx, "a")
		require.ErrorIs(t, err, zerrors.ErrNotFound)
	})

	t.Run("list is ordered by creation and paged", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, token("c", base.Add(2*time.Minute))))
		require.NoError(t, repo.Upsert(ctx, token("a", base)))
		require.NoError(t, repo.Upsert(ctx, token("b", base.Add(time.Minute))))

		all, err := repo.List(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

		page, err := repo.List(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		require.Equal(t, "b", page[0].ID)

		empty, err := repo.List(ctx, 5, 10)
		require.NoError(t, err)
		require.Empty(t, empty)
	})
}
