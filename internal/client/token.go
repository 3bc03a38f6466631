package client

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// resolveToken finds an optional bearer token for the learning-path
// service. The environment variable wins; otherwise the credentials file
// under the user config directory is consulted. An empty result means the
// request is sent unauthenticated.
func resolveToken() string {
	if token := os.Getenv("LEARNPATH_TOKEN"); token != "" {
		return token
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}

	var creds struct {
		Token string `json:"token"`
	}
	path := filepath.Join(configHome, "learnpath", "credentials.json")
	if err := readJSONFile(path, &creds); err != nil {
		return ""
	}
	return creds.Token
}

// readJSONFile reads a JSON file and unmarshals it into the provided variable.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}
