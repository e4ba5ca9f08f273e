package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	portEnvVar       = "PORT"
	appNameVar       = "APP_NAME"
	folderEnvVar     = "FOLDER"
	configFileVar    = "CONFIG_FILE"
	logLevelVar      = "LOG_LEVEL"
	tokenSecretVar   = "TOKEN_SECRET"
	tokenDBVar       = "TOKEN_DB"
	oidcIssuerVar    = "OIDC_ISSUER"
	oidcClientIDVar  = "OIDC_CLIENT_ID"
	adminTokenEnvVar = "ADMIN_TOKEN"
)

// TokenDBMemory selects the in-memory refresh token repository.
const TokenDBMemory = "memory"

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "ZhiBot")
}

// GetDataFolder is the storage directory for consent files, the token database and the
// generated signing secret.
func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetConfigFile() string {
	return GetEnv(configFileVar, "zhibot.yaml")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetTokenSecret() string {
	return GetEnv(tokenSecretVar, "")
}

func (e EnvVars) GetTokenDB() string {
	return GetEnv(tokenDBVar, filepath.Join(e.GetDataFolder(), "tokens.db"))
}

func (EnvVars) GetOIDCIssuer() string {
	return GetEnv(oidcIssuerVar, "")
}

func (EnvVars) GetOIDCClientID() string {
	return GetEnv(oidcClientIDVar, "")
}

func (EnvVars) GetAdminToken() string {
	return GetEnv(adminTokenEnvVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
