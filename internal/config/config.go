package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the settings the luna client needs to reach the daemon.
type Config struct {
	Endpoint          string
	Protocol          string
	VerifyCertificate bool
	Username          string
	Password          string
	Timeout           time.Duration
	Retries           int
	PollInterval      time.Duration
	TokenFile         string
}

const (
	defaultConfigPath   = "~/.config/luna/luna.toml"
	defaultTokenFile    = "~/.cache/luna/token.toml"
	defaultEndpoint     = "localhost:7050"
	defaultProtocol     = "http"
	defaultUsername     = "luna"
	defaultTimeout      = 10 * time.Second
	defaultRetries      = 3
	defaultPollInterval = 2 * time.Second
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Endpoint:          defaultEndpoint,
		Protocol:          defaultProtocol,
		VerifyCertificate: true,
		Username:          defaultUsername,
		Timeout:           defaultTimeout,
		Retries:           defaultRetries,
		PollInterval:      defaultPollInterval,
		TokenFile:         mustExpand(defaultTokenFile),
	}
}

type rawConfig struct {
	API struct {
		Endpoint          string `toml:"endpoint"`
		Protocol          string `toml:"protocol"`
		VerifyCertificate *bool  `toml:"verify_certificate"`
		Username          string `toml:"username"`
		Password          string `toml:"password"`
		TimeoutSeconds    int    `toml:"timeout_seconds"`
		Retries           *int   `toml:"retries"`
	} `toml:"api"`
	Client struct {
		PollIntervalSeconds int    `toml:"poll_interval_seconds"`
		TokenFile           string `toml:"token_file"`
	} `toml:"client"`
}

// Load locates and parses the luna config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.API.Endpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.ToLower(strings.TrimSpace(raw.API.Protocol)); v != "" {
		if v != "http" && v != "https" {
			return Config{}, fmt.Errorf("parse config: unsupported protocol %q", raw.API.Protocol)
		}
		cfg.Protocol = v
	}
	if raw.API.VerifyCertificate != nil {
		cfg.VerifyCertificate = *raw.API.VerifyCertificate
	}
	if v := strings.TrimSpace(raw.API.Username); v != "" {
		cfg.Username = v
	}
	cfg.Password = raw.API.Password
	if raw.API.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(raw.API.TimeoutSeconds) * time.Second
	}
	if raw.API.Retries != nil && *raw.API.Retries >= 0 {
		cfg.Retries = *raw.API.Retries
	}
	if raw.Client.PollIntervalSeconds > 0 {
		cfg.PollInterval = time.Duration(raw.Client.PollIntervalSeconds) * time.Second
	}
	if v := strings.TrimSpace(raw.Client.TokenFile); v != "" {
		cfg.TokenFile = mustExpand(v)
	}

	return cfg, nil
}

// BaseURL returns the daemon root URL, adding the configured protocol when
// the endpoint carries no scheme.
func (c Config) BaseURL() string {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/") + "/"
	}
	protocol := strings.TrimSpace(c.Protocol)
	if protocol == "" {
		protocol = defaultProtocol
	}
	return protocol + "://" + strings.TrimRight(endpoint, "/") + "/"
}

// DefaultPath returns the default config file location, unexpanded.
func DefaultPath() string {
	return defaultConfigPath
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
