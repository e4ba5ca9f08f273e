// Package platforms maps configured platform names to their handlers.
package platforms

import (
	"fmt"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/bot/ding"
	"github.com/inevity/zhibot/bot/genie"
	"github.com/inevity/zhibot/bot/genie2"
	"github.com/inevity/zhibot/bot/miai"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/home"
)

// Factory builds a platform handler on top of the home hub.
type Factory func(hub home.Hub) bot.Handler

var registry = map[bot.Platform]Factory{
	bot.Genie:  func(hub home.Hub) bot.Handler { return genie.New(hub) },
	bot.Genie2: func(hub home.Hub) bot.Handler { return genie2.New(hub) },
	bot.Miai:   func(hub home.Hub) bot.Handler { return miai.New(hub) },
	bot.Ding:   func(hub home.Hub) bot.Handler { return ding.New(hub) },
}

// NewHandler returns the handler for p.
func NewHandler(p bot.Platform, hub home.Hub) (bot.Handler, error) {
	factory, ok := registry[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", zerrors.ErrUnknownPlatform, p)
	}
	return factory(hub), nil
}
