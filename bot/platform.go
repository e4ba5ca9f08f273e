package bot

import (
	"fmt"
	"strings"

	zerrors "github.com/inevity/zhibot/internal/errors"
)

// Platform names a supported voice or chat platform. It is the "platform" key of a bot's
// configuration.
type Platform string

const (
	Genie  Platform = "genie"  // AliGenie smart home skill
	Genie2 Platform = "genie2" // AliGenie custom chat skill
	Miai   Platform = "miai"   // Xiaomi XiaoAi skill
	Ding   Platform = "ding"   // DingTalk outgoing robot
)

// Platforms lists every supported platform.
var Platforms = []Platform{Genie, Genie2, Miai, Ding}

// ParsePlatform validates a configured platform name.
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", zerrors.ErrUnknownPlatform, name)
}

func (p Platform) String() string { return string(p) }
