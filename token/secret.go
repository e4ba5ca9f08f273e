package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretFileName is the file under the data folder holding the generated signing secret.
const SecretFileName = ".token_secret"

// LoadOrCreateSecret returns the signing secret stored in folder, generating and persisting a
// new one (mode 0600) on first use. The second result reports whether the secret was created.
func LoadOrCreateSecret(folder string) (string, bool, error) {
	path := filepath.Join(folder, SecretFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, false, nil
		}
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("[LoadOrCreateSecret] read %s: %w", path, err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", false, fmt.Errorf("[LoadOrCreateSecret] generate: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := os.MkdirAll(folder, 0o700); err != nil {
		return "", false, fmt.Errorf("[LoadOrCreateSecret] create folder: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return "", false, fmt.Errorf("[LoadOrCreateSecret] write %s: %w", path, err)
	}
	return secret, true, nil
}
