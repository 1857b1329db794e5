package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the CLI configuration, loaded from defaults, then a TOML file,
// then FIELDWISE_* environment variables, each layer overriding the last.
type Config struct {
	Model struct {
		Name    string        `koanf:"name"`
		APIKey  string        `koanf:"api_key"`
		BaseURL string        `koanf:"base_url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"model"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`

	Resolve struct {
		WebGrounding bool `koanf:"web_grounding"`
	} `koanf:"resolve"`
}

// LoadConfig loads the configuration. An empty configPath falls back to the
// default locations; a missing default file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"model.name":            "gpt-4o-mini",
		"model.timeout":         "2m",
		"log.level":             "info",
		"resolve.web_grounding": true,
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		for _, path := range []string{"./fieldwise.toml", "$HOME/.fieldwise.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider("FIELDWISE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "FIELDWISE_")), "_", ".", -1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &config, nil
}

// InitConfig writes a sample configuration file, refusing to overwrite an
// existing one.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# fieldwise configuration

[model]
name = "gpt-4o-mini"
api_key = "your-api-key"
# base_url = "https://api.openai.com/v1"
timeout = "2m"

[log]
level = "info"

[resolve]
web_grounding = true
`
	return os.WriteFile(configPath, []byte(sample), 0644)
}
