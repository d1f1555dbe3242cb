package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GetConfigPath returns the default config file path (~/.nanogate/config.yaml).
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nanogate", "config.yaml")
}

// Load reads configuration from a YAML file. If path is empty, uses the
// default config path. If the file doesn't exist, returns DefaultConfig().
func Load(path string) (Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}

	cfg := DefaultConfig() // start with defaults so zero-value fields get filled
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes configuration to a YAML file. If path is empty, uses the
// default config path.
func Save(cfg Config, path string) error {
	if path == "" {
		path = GetConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveWorkspace returns cfg.WorkspaceDir as an absolute path, resolving a
// relative value against the current working directory the way the
// environment defaults describe (<cwd>/workspace).
func (c Config) ResolveWorkspace() (string, error) {
	dir := c.WorkspaceDir
	if dir == "" {
		dir = DefaultWorkspace
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, dir), nil
}

// ResolveAPIKey returns the backend API key: an explicit value takes
// precedence, otherwise it's read from the configured environment variable
// (APIKeyEnv, defaulting to DefaultAPIKeyEnv).
func (c Config) ResolveAPIKey() string {
	if c.Backend.APIKey != "" {
		return c.Backend.APIKey
	}
	envName := c.Backend.APIKeyEnv
	if envName == "" {
		envName = DefaultAPIKeyEnv
	}
	return os.Getenv(envName)
}

// WorkspacePath joins the resolved workspace root with the given
// filesystem-layout-relative elements (e.g. ".sessions", "sessions.json").
func (c Config) WorkspacePath(elem ...string) (string, error) {
	root, err := c.ResolveWorkspace()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{root}, elem...)...), nil
}
