// Package views holds the client's local copy of backend state and keeps it
// consistent as snapshots and pushed updates arrive.
package views

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/tidwall/gjson"
)

// Known configuration keys.
const (
	KeyNumTabs              = "numTabs"
	KeyExecutionSpeed       = "executionSpeed"
	KeyRetryAttempts        = "retryAttempts"
	KeyHeadlessMode         = "headlessMode"
	KeyMiniWindowMode       = "miniWindowMode"
	KeyEnableStealth        = "enableStealth"
	KeyKeepCookies          = "keepCookies"
	KeyDiscordWebhook       = "discordWebhook"
	KeyDiscordNotifications = "discordNotifications"
	KeySystemMonitoring     = "systemMonitoring"
	KeyEnableLogging        = "enableLogging"
	KeyAutoRestart          = "autoRestart"
	KeyTabProxies           = "tabProxies"
)

// ConfigView is the bot configuration as last loaded, plus local edits.
// Numbers are held as float64, matching decoded JSON.
type ConfigView struct {
	Fields     map[string]any
	TabProxies map[int]string
}

// NewConfigView returns an empty configuration.
func NewConfigView() ConfigView {
	return ConfigView{
		Fields:     make(map[string]any),
		TabProxies: make(map[int]string),
	}
}

// Clone returns a copy that shares no maps with c.
func (c ConfigView) Clone() ConfigView {
	out := NewConfigView()
	maps.Copy(out.Fields, c.Fields)
	maps.Copy(out.TabProxies, c.TabProxies)
	return out
}

// Number returns a numeric field.
func (c ConfigView) Number(key string) (float64, bool) {
	v, ok := c.Fields[key]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// Bool returns a boolean field, false when absent.
func (c ConfigView) Bool(key string) bool {
	b, _ := c.Fields[key].(bool)
	return b
}

// String returns a string field, "" when absent.
func (c ConfigView) String(key string) string {
	s, _ := c.Fields[key].(string)
	return s
}

// NumTabs returns the configured tab count.
func (c ConfigView) NumTabs() (int, bool) {
	n, ok := c.Number(KeyNumTabs)
	if !ok {
		return 0, false
	}
	return int(n), true
}

// ProxyTabs returns the tab indices that have a proxy, ascending.
func (c ConfigView) ProxyTabs() []int {
	return slices.Sorted(maps.Keys(c.TabProxies))
}

// MarshalJSON encodes the view as one flat object with tabProxies keyed by
// decimal tab index.
func (c ConfigView) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Fields)+1)
	maps.Copy(out, c.Fields)

	proxies := make(map[string]string, len(c.TabProxies))
	for tab, addr := range c.TabProxies {
		proxies[strconv.Itoa(tab)] = addr
	}
	out[KeyTabProxies] = proxies

	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat configuration object. Proxy entries whose
// key is not a positive integer are dropped.
func (c *ConfigView) UnmarshalJSON(data []byte) error {
	parsed, err := ParseConfig(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseConfig decodes a configuration object.
func ParseConfig(data []byte) (ConfigView, error) {
	if !gjson.ValidBytes(data) {
		return ConfigView{}, fmt.Errorf("parse config: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return ConfigView{}, fmt.Errorf("parse config: expected object, got %s", root.Type)
	}

	cfg := NewConfigView()
	root.ForEach(func(key, value gjson.Result) bool {
		if key.Str != KeyTabProxies {
			cfg.Fields[key.Str] = value.Value()
			return true
		}
		value.ForEach(func(tab, addr gjson.Result) bool {
			idx, err := strconv.Atoi(tab.Str)
			if err != nil || idx < 1 || addr.String() == "" {
				return true
			}
			cfg.TabProxies[idx] = addr.String()
			return true
		})
		return true
	})
	return cfg, nil
}

// ToFloat converts the numeric types that appear in decoded or edited
// configuration into a float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
