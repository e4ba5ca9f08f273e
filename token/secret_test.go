package token_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inevity/zhibot/token"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateSecret(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	secret, created, err := token.LoadOrCreateSecret(dir)
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, secret, 64)

	info, err := os.Stat(filepath.Join(dir, token.SecretFileName))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, created, err := token.LoadOrCreateSecret(dir)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, secret, again)
}
