package home

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/rs/zerolog/log"
)

var _ Hub = (*Memory)(nil)

// Memory is an in-process Hub seeded from the configuration file.
type Memory struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

func NewMemory(seed []config.DeviceConfig) (*Memory, error) {
	m := &Memory{devices: make(map[string]*Device, len(seed))}
	for i, d := range seed {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return nil, fmt.Errorf("[home NewMemory] %w: devices[%d] has no id", zerrors.ErrInvalidConfig, i)
		}
		if _, ok := m.devices[id]; ok {
			return nil, fmt.Errorf("[home NewMemory] %w: device %q already configured", zerrors.ErrInvalidConfig, id)
		}
		name := d.Name
		if name == "" {
			name = id
		}
		typ := d.Type
		if typ == "" {
			typ = "switch"
		}
		m.devices[id] = &Device{ID: id, Name: name, Type: typ, On: strings.EqualFold(d.State, "on")}
	}
	return m, nil
}

func (m *Memory) Devices(_ context.Context) ([]Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Execute(_ context.Context, deviceID string, action Action) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return Device{}, fmt.Errorf("%w: device %q", zerrors.ErrNotFound, deviceID)
	}
	switch action {
	case ActionTurnOn:
		d.On = true
	case ActionTurnOff:
		d.On = false
	default:
		return Device{}, fmt.Errorf("%w: action %q", zerrors.ErrUnsupported, action)
	}
	log.Info().Str("device", d.ID).Str("action", string(action)).Msg("home: executed")
	return *d, nil
}

func (m *Memory) State(_ context.Context, deviceID string) (Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return Device{}, fmt.Errorf("%w: device %q", zerrors.ErrNotFound, deviceID)
	}
	return *d, nil
}

// find resolves a device by id or by case-insensitive name.
func (m *Memory) find(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.devices[ref]; ok {
		return ref, true
	}
	for id, d := range m.devices {
		if strings.EqualFold(d.Name, ref) {
			return id, true
		}
	}
	return "", false
}

func (m *Memory) Converse(ctx context.Context, userID, text string) (string, error) {
	cmd := parseCommand(text)
	log.Debug().Str("user", userID).Str("text", text).Str("verb", string(cmd.verb)).Msg("home: converse")

	if cmd.verb == verbUnknown {
		return cmd.phrases.unknown(strings.TrimSpace(text)), nil
	}
	id, ok := m.find(cmd.device)
	if !ok {
		return cmd.phrases.noDevice(cmd.device), nil
	}

	switch cmd.verb {
	case verbOn, verbOff:
		action := ActionTurnOn
		if cmd.verb == verbOff {
			action = ActionTurnOff
		}
		d, err := m.Execute(ctx, id, action)
		if err != nil {
			return "", err
		}
		return cmd.phrases.done(d), nil
	default:
		d, err := m.State(ctx, id)
		if err != nil {
			return "", err
		}
		return cmd.phrases.state(d), nil
	}
}
