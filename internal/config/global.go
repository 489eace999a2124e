package config

import (
	"os"
	"path/filepath"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "citeq"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/citeq/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}

// Example renders a starter config file for the given settings.
func Example() string {
	return `# citeq configuration
db_path: citeq.db
openalex_url: https://api.openalex.org
# openalex_email: you@example.org
s2_url: https://api.semanticscholar.org/graph/v1
# s2_api_key: ...
max_attempts: 8
base_delay: 1s
max_delay: 2m
requests_per_second: 1
page_size: 100
batch_size: 400
ollama_url: http://localhost:11434
ollama_model: llama2
classify_workers: 4
log_mode: development
`
}
