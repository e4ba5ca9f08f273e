// Package home is the smart home the bots talk to: a list of switchable devices and a tiny
// command language for the chat platforms.
package home

import (
	"context"
)

// Action is a device command.
type Action string

const (
	ActionTurnOn  Action = "TurnOn"
	ActionTurnOff Action = "TurnOff"
)

type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	On   bool   `json:"on"`
}

// PowerState renders On the way the platforms expect.
func (d Device) PowerState() string {
	if d.On {
		return "on"
	}
	return "off"
}

// Hub is what platform handlers drive.
type Hub interface {
	Devices(ctx context.Context) ([]Device, error)
	Execute(ctx context.Context, deviceID string, action Action) (Device, error)
	State(ctx context.Context, deviceID string) (Device, error)
	// Converse answers a free-text utterance from a chat platform user.
	Converse(ctx context.Context, userID, text string) (string, error)
}
