package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces environment overrides: BOTCTL_BACKEND_BASE_URL
	// sets backend.base_url.
	EnvPrefix = "BOTCTL"
	// GlobalConfigDir is the directory under $XDG_CONFIG_HOME (or ~/.config).
	GlobalConfigDir = "botctl"
	// ProjectConfigDir is the directory, relative to the working directory,
	// holding the project config and the default state files.
	ProjectConfigDir = ".botctl"
	// ConfigFileName is the config file name in both locations.
	ConfigFileName = "config.yaml"
)

const (
	keyBaseURL = "backend.base_url"
	keyWSURL   = "backend.ws_url"
)

// Overrides are settings given explicitly on the command line. Nil fields
// leave the loaded value alone.
type Overrides struct {
	BaseURL        *string
	WSURL          *string
	RequestTimeout *time.Duration
	Prefs          *string
	EventLog       *string
}

// ConfigureEnv makes v read BOTCTL_* variables, with "." and "-" in keys
// mapped to "_".
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// Load reads the layered configuration, applies o and validates the result.
func Load(v *viper.Viper, o Overrides) (*Config, error) {
	cfg, err := LoadConfig(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := o.apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// apply copies the set overrides into cfg. A base URL given without a
// websocket URL moves the websocket URL to the same host.
func (o Overrides) apply(cfg *Config) error {
	if o.BaseURL != nil {
		cfg.Backend.BaseURL = *o.BaseURL
		if o.WSURL == nil {
			ws, err := DeriveWSURL(*o.BaseURL)
			if err != nil {
				return fmt.Errorf("invalid base url %q: %w", *o.BaseURL, err)
			}
			cfg.Backend.WSURL = ws
		}
	}
	if o.WSURL != nil {
		cfg.Backend.WSURL = *o.WSURL
	}
	if o.RequestTimeout != nil {
		cfg.Backend.RequestTimeout = *o.RequestTimeout
	}
	if o.Prefs != nil {
		cfg.Paths.Prefs = *o.Prefs
	}
	if o.EventLog != nil {
		cfg.Paths.EventLog = *o.EventLog
	}
	return nil
}

// DeriveWSURL maps http(s)://host/prefix to ws(s)://host/prefix/ws, the
// backend's push endpoint.
func DeriveWSURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// layer is one config file in the load order.
type layer struct {
	name     string
	path     string
	required bool
}

func layers(v *viper.Viper) []layer {
	return []layer{
		{name: "global", path: globalConfigPath()},
		{name: "project", path: filepath.Join(ProjectConfigDir, ConfigFileName)},
		{name: "explicit", path: v.GetString("config"), required: true},
	}
}

// LoadConfig merges, in increasing precedence: Default(), the global file,
// the project file, the --config file and BOTCTL_* variables. Flags bound
// to v are applied by the caller through Overrides. Only the explicit file
// has to exist.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := Default()

	defaults, err := settings(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return nil, fmt.Errorf("merge defaults: %w", err)
	}

	for _, l := range layers(v) {
		if l.path == "" {
			continue
		}
		m, err := readLayer(l)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		if err := v.MergeConfigMap(m); err != nil {
			return nil, fmt.Errorf("merge %s config %s: %w", l.name, l.path, err)
		}
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// readLayer parses one YAML file. A missing optional file yields nil. A file
// that sets base_url but not ws_url gets the derived websocket URL, so the
// two never point at different hosts by accident.
func readLayer(l layer) (map[string]any, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !l.required {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s config: %w", l.name, err)
	}

	fv := viper.New()
	fv.SetConfigType("yaml")
	if err := fv.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parse %s config %s: %w", l.name, l.path, err)
	}
	if fv.IsSet(keyBaseURL) && !fv.IsSet(keyWSURL) {
		if ws, err := DeriveWSURL(fv.GetString(keyBaseURL)); err == nil {
			fv.Set(keyWSURL, ws)
		}
	}
	return fv.AllSettings(), nil
}

func globalConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, GlobalConfigDir, ConfigFileName)
}

// settings turns cfg into the nested map viper merges, keyed by the
// mapstructure tags.
func settings(cfg *Config) (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(cfg, &out); err != nil {
		return nil, err
	}
	return out, nil
}
