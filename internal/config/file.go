package config

import (
	"fmt"
	"os"
	"strings"

	zerrors "github.com/inevity/zhibot/internal/errors"
	"gopkg.in/yaml.v3"
)

// BotConfig is one configured bot endpoint.
type BotConfig struct {
	Platform           string `yaml:"platform"`
	Name               string `yaml:"name,omitempty"`
	Token              string `yaml:"token,omitempty"`
	LongLivedToken     string `yaml:"long_lived_token,omitempty"`
	LongLivedTokenFile string `yaml:"long_lived_token_file,omitempty"`
}

// ClientConfig describes an OAuth client allowed to use the token endpoint.
type ClientConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name,omitempty"`
	Icon       string `yaml:"icon,omitempty"`
	SecretHash string `yaml:"secret_hash,omitempty"`
}

// DeviceConfig seeds the in-memory home hub.
type DeviceConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Type  string `yaml:"type,omitempty"`
	State string `yaml:"state,omitempty"`
}

// File is the YAML configuration file.
type File struct {
	Bots    []BotConfig    `yaml:"bots"`
	Clients []ClientConfig `yaml:"clients,omitempty"`
	Devices []DeviceConfig `yaml:"devices,omitempty"`
}

// LoadFile reads and validates the YAML configuration at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config LoadFile] read %s: %w", path, err)
	}
	return ParseFile(data)
}

// ParseFile parses and validates YAML configuration bytes.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("[config ParseFile] %w: %v", zerrors.ErrInvalidConfig, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks required fields and rejects duplicate bot names.
func (f *File) Validate() error {
	seen := make(map[string]struct{}, len(f.Bots))
	for i := range f.Bots {
		b := &f.Bots[i]
		b.Platform = strings.ToLower(strings.TrimSpace(b.Platform))
		if b.Platform == "" {
			return fmt.Errorf("%w: bots[%d]: platform is required", zerrors.ErrInvalidConfig, i)
		}
		key := b.Name
		if key == "" {
			key = b.Platform
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: bots[%d]: %q already configured", zerrors.ErrInvalidConfig, i, key)
		}
		seen[key] = struct{}{}
	}
	for i, c := range f.Clients {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: clients[%d]: id is required", zerrors.ErrInvalidConfig, i)
		}
	}
	for i, d := range f.Devices {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: devices[%d]: id and name are required", zerrors.ErrInvalidConfig, i)
		}
	}
	return nil
}

// HasLongLivedToken reports whether the bot is configured for long-lived token auth.
func (b BotConfig) HasLongLivedToken() bool {
	return b.LongLivedToken != "" || b.LongLivedTokenFile != ""
}
