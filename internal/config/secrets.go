package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultSecretsPath = "/var/run/secrets/xtherma"
	apiKeyFile         = "api_key"
)

// tryLoadFromSecrets attempts to read the API key from a mounted Kubernetes secret file.
// Returns an empty string if the secret doesn't exist (not an error - allows fallback to env vars).
func tryLoadFromSecrets() (string, error) {
	secretsPath := os.Getenv("XTHERMA_SECRETS_PATH")
	if secretsPath == "" {
		secretsPath = defaultSecretsPath
	}

	data, err := os.ReadFile(filepath.Join(secretsPath, apiKeyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}
