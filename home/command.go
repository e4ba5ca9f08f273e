package home

import (
	"strings"
)

type verb string

const (
	verbUnknown verb = ""
	verbOn      verb = "on"
	verbOff     verb = "off"
	verbStatus  verb = "status"
)

type command struct {
	verb    verb
	device  string
	phrases phrases
}

type phrases struct {
	unknown  func(text string) string
	noDevice func(name string) string
	done     func(d Device) string
	state    func(d Device) string
}

var chinese = phrases{
	unknown:  func(text string) string { return "抱歉，我听不懂：" + text },
	noDevice: func(name string) string { return "找不到设备：" + name },
	done: func(d Device) string {
		if d.On {
			return "已打开" + d.Name
		}
		return "已关闭" + d.Name
	},
	state: func(d Device) string {
		if d.On {
			return d.Name + "现在是开着的"
		}
		return d.Name + "现在是关着的"
	},
}

var english = phrases{
	unknown:  func(text string) string { return "Sorry, I did not understand: " + text },
	noDevice: func(name string) string { return "No device named " + name },
	done:     func(d Device) string { return d.Name + " is now " + d.PowerState() },
	state:    func(d Device) string { return d.Name + " is " + d.PowerState() },
}

// parseCommand understands "打开X", "关闭X", "X状态", "turn on X", "turn off X" and "status of X".
func parseCommand(text string) command {
	t := strings.TrimSpace(text)
	t = strings.TrimRight(t, "。.!！?？")
	lower := strings.ToLower(t)

	switch {
	case strings.HasPrefix(t, "打开"):
		return command{verb: verbOn, device: strings.TrimSpace(strings.TrimPrefix(t, "打开")), phrases: chinese}
	case strings.HasPrefix(t, "关闭"):
		return command{verb: verbOff, device: strings.TrimSpace(strings.TrimPrefix(t, "关闭")), phrases: chinese}
	case strings.HasSuffix(t, "状态"):
		return command{verb: verbStatus, device: strings.TrimSpace(strings.TrimSuffix(t, "状态")), phrases: chinese}
	case strings.HasPrefix(lower, "turn on "):
		return command{verb: verbOn, device: strings.TrimSpace(t[len("turn on "):]), phrases: english}
	case strings.HasPrefix(lower, "turn off "):
		return command{verb: verbOff, device: strings.TrimSpace(t[len("turn off "):]), phrases: english}
	case strings.HasPrefix(lower, "status of "):
		return command{verb: verbStatus, device: strings.TrimSpace(t[len("status of "):]), phrases: english}
	}

	if isASCII(t) {
		return command{phrases: english}
	}
	return command{phrases: chinese}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
