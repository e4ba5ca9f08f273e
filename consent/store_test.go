package consent_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/inevity/zhibot/consent"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/stretchr/testify/require"
)

func readIDs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal(data, &ids))
	return ids
}

func TestStoragePath(t *testing.T) {
	require.Equal(t, filepath.Join("data", "zhibot.shop"), consent.StoragePath("data", "shop"))
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	path := consent.StoragePath(t.TempDir(), "genie")
	s := consent.NewStore()

	require.False(t, s.IsApproved(path, "U1"))
	require.Empty(t, s.Approved(path))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestStore_SurvivesRestart(t *testing.T) {
	path := consent.StoragePath(t.TempDir(), "genie")

	s := consent.NewStore()
	require.NoError(t, s.Approve(path, "U1"))
	require.Equal(t, []string{"U1"}, readIDs(t, path))

	restarted := consent.NewStore()
	require.True(t, restarted.IsApproved(path, "U1"))
	require.False(t, restarted.IsApproved(path, "U2"))
}

func TestStore_CorruptFileIsEmpty(t *testing.T) {
	path := consent.StoragePath(t.TempDir(), "genie")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := consent.NewStore()
	require.False(t, s.IsApproved(path, "U1"))

	require.NoError(t, s.Approve(path, "U1"))
	require.Equal(t, []string{"U1"}, readIDs(t, path))
}

func TestStore_MemoryTierWins(t *testing.T) {
	path := consent.StoragePath(t.TempDir(), "genie")
	s := consent.NewStore()
	require.NoError(t, s.Approve(path, "U1"))

	// rewritten behind the store's back
	require.NoError(t, os.WriteFile(path, []byte(`["U9"]`), 0o644))
	require.True(t, s.IsApproved(path, "U1"))
	require.False(t, s.IsApproved(path, "U9"))
}

func TestStore_ApproveIsIdempotent(t *testing.T) {
	path := consent.StoragePath(t.TempDir(), "genie")
	s := consent.NewStore()

	require.NoError(t, s.Approve(path, "U1"))
	require.NoError(t, s.Approve(path, "U1"))
	require.Equal(t, []string{"U1"}, s.Approved(path))

	require.ErrorIs(t, s.Approve(path, ""), zerrors.ErrInvalidRequest)
	require.False(t, s.IsApproved(path, ""))
}

func TestStore_RevokeAndClear(t *testing.T) {
	path := consent.StoragePath(t.TempDir(), "genie")
	s := consent.NewStore()
	require.NoError(t, s.Approve(path, "U1"))
	require.NoError(t, s.Approve(path, "U2"))

	removed, err := s.Revoke(path, "U1")
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = s.Revoke(path, "U1")
	require.NoError(t, err)
	require.False(t, removed)
	require.Equal(t, []string{"U2"}, readIDs(t, path))

	require.NoError(t, s.Clear(path))
	require.Empty(t, s.Approved(path))
	require.Empty(t, readIDs(t, path))

	require.False(t, consent.NewStore().IsApproved(path, "U2"))
}

func TestStore_RecordsAreIndependent(t *testing.T) {
	dir := t.TempDir()
	s := consent.NewStore()
	require.NoError(t, s.Approve(consent.StoragePath(dir, "shop"), "U1"))

	require.False(t, s.IsApproved(consent.StoragePath(dir, "home"), "U1"))
}

func TestStore_ConcurrentApprovals(t *testing.T) {
	path := consent.StoragePath(t.TempDir(), "genie")
	s := consent.NewStore()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, s.Approve(path, fmt.Sprintf("U%02d", i)))
		}(i)
	}
	wg.Wait()

	require.Len(t, s.Approved(path), n)
	require.Len(t, readIDs(t, path), n)

	restarted := consent.NewStore()
	for i := 0; i < n; i++ {
		require.True(t, restarted.IsApproved(path, fmt.Sprintf("U%02d", i)))
	}
}

func TestStore_PersistFailureKeepsMemory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	// parent of the record is a regular file, so the write must fail
	path := consent.StoragePath(blocker, "genie")

	s := consent.NewStore()
	err := s.Approve(path, "U1")
	require.ErrorIs(t, err, zerrors.ErrPersistence)
	require.True(t, s.IsApproved(path, "U1"))
}

func TestStore_UnreadableFileIsNotOverwritten(t *testing.T) {
	t.Run("directory in place of the record", func(t *testing.T) {
		path := consent.StoragePath(t.TempDir(), "genie")
		require.NoError(t, os.MkdirAll(path, 0o755))

		s := consent.NewStore()
		require.False(t, s.IsApproved(path, "U1"))
		require.ErrorIs(t, s.Approve(path, "U1"), zerrors.ErrPersistence)
		require.True(t, s.IsApproved(path, "U1"))

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	})

	t.Run("permission denied", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root can read any file")
		}
		path := consent.StoragePath(t.TempDir(), "shop")
		require.NoError(t, os.WriteFile(path, []byte(`["A"]`), 0o000))
		t.Cleanup(func() { _ = os.Chmod(path, 0o644) })

		s := consent.NewStore()
		require.False(t, s.IsApproved(path, "A"))
		require.ErrorIs(t, s.Approve(path, "B"), zerrors.ErrPersistence)
		require.True(t, s.IsApproved(path, "B"))

		require.NoError(t, os.Chmod(path, 0o644))
		require.Equal(t, []string{"A"}, readIDs(t, path))
	})
}
