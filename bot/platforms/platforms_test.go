package platforms_test

import (
	"testing"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/bot/platforms"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/home"
	"github.com/stretchr/testify/require"
)

func TestNewHandler(t *testing.T) {
	hub, err := home.NewMemory(nil)
	require.NoError(t, err)

	for _, p := range bot.Platforms {
		h, err := platforms.NewHandler(p, hub)
		require.NoError(t, err)
		require.Equal(t, p == bot.Genie, h.OAuthCapable(), p)
	}

	_, err = platforms.NewHandler(bot.Platform("alexa"), hub)
	require.ErrorIs(t, err, zerrors.ErrUnknownPlatform)
}
