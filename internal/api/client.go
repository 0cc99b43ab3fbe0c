// Package api exposes the backend's HTTP endpoints as typed calls.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/npratt/botctl/internal/transport"
	"github.com/npratt/botctl/internal/views"
)

// ErrRejected is returned when the backend answers 2xx with success=false.
var ErrRejected = errors.New("rejected by backend")

// ErrNotJSON is returned when an endpoint that must answer JSON does not.
var ErrNotJSON = errors.New("response is not JSON")

// Action is a bot control action.
type Action string

// Control actions accepted by /bot/control.
const (
	ActionStart         Action = "start"
	ActionStop          Action = "stop"
	ActionPause         Action = "pause"
	ActionResume        Action = "resume"
	ActionEmergencyStop Action = "emergency_stop"
)

// Diagnostic kinds.
const (
	DiagKeydrop      = "keydrop"
	DiagLogin        = "login"
	DiagNotification = "notification"
	DiagProxy        = "proxy"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Reply is the {success, message} body most command endpoints return.
type Reply struct {
	Success bool
	Message string
	// Raw is the complete body.
	Raw []byte
}

// Client calls the backend through a transport.Requester.
type Client struct {
	req transport.Requester
}

// New creates a Client.
func New(req transport.Requester) *Client {
	return &Client{req: req}
}

// call performs a request and requires a JSON response.
func (c *Client) call(ctx context.Context, method, path string, body any) (gjson.Result, error) {
	res, err := c.req.Do(ctx, method, path, body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !res.JSON || !gjson.ValidBytes(res.Body) {
		return gjson.Result{}, fmt.Errorf("%s %s: %w", method, path, ErrNotJSON)
	}
	return gjson.ParseBytes(res.Body), nil
}

// command performs a request whose body is a Reply. A reply with
// success=false is returned together with ErrRejected.
func (c *Client) command(ctx context.Context, method, path string, body any) (Reply, error) {
	doc, err := c.call(ctx, method, path, body)
	if err != nil {
		return Reply{}, err
	}

	reply := Reply{Success: true, Message: doc.Get("message").String(), Raw: []byte(doc.Raw)}
	if s := doc.Get("success"); s.Exists() {
		reply.Success = s.Bool()
	}
	if !reply.Success {
		msg := reply.Message
		if msg == "" {
			msg = path
		}
		return reply, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return reply, nil
}

func object(doc gjson.Result, what string) (map[string]any, error) {
	if !doc.IsObject() {
		return nil, fmt.Errorf("%s: expected object, got %s", what, doc.Type)
	}
	m, _ := doc.Value().(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Health fetches /health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	doc, err := c.call(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	return object(doc, "health")
}

// HealthCheck reports whether /health answers 2xx.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.req.Do(ctx, http.MethodGet, "/health", nil)
	return err
}

// GetConfig fetches the persisted configuration.
func (c *Client) GetConfig(ctx context.Context) (views.ConfigView, error) {
	doc, err := c.call(ctx, http.MethodGet, "/config", nil)
	if err != nil {
		return views.ConfigView{}, err
	}
	cfg, err := views.ParseConfig([]byte(doc.Raw))
	if err != nil {
		return views.ConfigView{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// UpdateConfig persists cfg.
func (c *Client) UpdateConfig(ctx context.Context, cfg views.ConfigView) error {
	body, err := cfg.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = c.command(ctx, http.MethodPost, "/config", body)
	return err
}

// ResetConfig restores the backend's default configuration.
func (c *Client) ResetConfig(ctx context.Context) (Reply, error) {
	return c.command(ctx, http.MethodPost, "/config/reset", nil)
}

// Control sends a bot control action.
func (c *Client) Control(ctx context.Context, action Action) (Reply, error) {
	body, err := sjson.SetBytes(nil, "action", string(action))
	if err != nil {
		return Reply{}, fmt.Errorf("encode action: %w", err)
	}
	return c.command(ctx, http.MethodPost, "/bot/control", body)
}

// Status fetches the bot status. The backend answers an object with a
// status field and optional status_text.
func (c *Client) Status(ctx context.Context) (views.StatusView, error) {
	doc, err := c.call(ctx, http.MethodGet, "/bot/status", nil)
	if err != nil {
		return views.StatusView{}, err
	}
	if doc.Type == gjson.String {
		return views.StatusView{State: doc.Str}, nil
	}
	if !doc.IsObject() {
		return views.StatusView{}, fmt.Errorf("status: expected object, got %s", doc.Type)
	}
	return views.StatusView{
		State:       doc.Get("status").String(),
		DisplayText: doc.Get("status_text").String(),
	}, nil
}

// Tab is one browser tab reported by /bot/tabs.
type Tab struct {
	ID     int
	Status string
	URL    string
	Proxy  string
}

// Tabs lists the bot's browser tabs. The backend answers either a list or
// an object keyed by tab id.
func (c *Client) Tabs(ctx context.Context) ([]Tab, error) {
	doc, err := c.call(ctx, http.MethodGet, "/bot/tabs", nil)
	if err != nil {
		return nil, err
	}

	var tabs []Tab
	doc.ForEach(func(key, v gjson.Result) bool {
		t := Tab{
			ID:     int(v.Get("id").Int()),
			Status: v.Get("status").String(),
			URL:    v.Get("url").String(),
			Proxy:  v.Get("proxy").String(),
		}
		if !v.Get("id").Exists() && key.Exists() {
			t.ID = int(key.Int())
		}
		tabs = append(tabs, t)
		return true
	})
	return tabs, nil
}

// Stats fetches participation statistics.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	doc, err := c.call(ctx, http.MethodGet, "/stats/participation", nil)
	if err != nil {
		return nil, err
	}
	m, err := object(doc, "stats")
	if err != nil {
		return nil, err
	}
	if msg, ok := m["error"].(string); ok && len(m) == 1 {
		return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return m, nil
}

// StatsHistory fetches the detailed participation history. An object answer
// is returned as-is; a list is wrapped under "history".
func (c *Client) StatsHistory(ctx context.Context) (map[string]any, error) {
	doc, err := c.call(ctx, http.MethodGet, "/stats/participation/history", nil)
	if err != nil {
		return nil, err
	}
	if doc.IsArray() {
		return map[string]any{"history": doc.Value()}, nil
	}
	return object(doc, "stats history")
}

// ResetStats clears the backend's statistics.
func (c *Client) ResetStats(ctx context.Context) (Reply, error) {
	return c.command(ctx, http.MethodPost, "/stats/reset", nil)
}

// SystemStats fetches host telemetry.
func (c *Client) SystemStats(ctx context.Context) (map[string]any, error) {
	doc, err := c.call(ctx, http.MethodGet, "/stats/system", nil)
	if err != nil {
		return nil, err
	}
	return object(doc, "system stats")
}

// Reports lists reports, optionally bounded by dates (YYYY-MM-DD).
func (c *Client) Reports(ctx context.Context, start, end string) ([]byte, error) {
	q := url.Values{}
	if start != "" {
		q.Set("start_date", start)
	}
	if end != "" {
		q.Set("end_date", end)
	}
	path := "/reports"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	doc, err := c.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return []byte(doc.Raw), nil
}

// Export downloads a report in format. JSON and text bodies are returned
// verbatim.
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatJSON && format != FormatCSV {
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
	res, err := c.req.Do(ctx, http.MethodGet, "/reports/export?format="+url.QueryEscape(format), nil)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// ClearCache clears the browser cache, optionally keeping the login session.
func (c *Client) ClearCache(ctx context.Context, preserveLogin bool) (Reply, error) {
	body, err := sjson.SetBytes(nil, "preserve_login", preserveLogin)
	if err != nil {
		return Reply{}, fmt.Errorf("encode cache request: %w", err)
	}
	return c.command(ctx, http.MethodPost, "/cache/clear", body)
}

// Diagnostic runs one of the backend's self tests. params is only sent for
// kinds that take a body (proxy).
func (c *Client) Diagnostic(ctx context.Context, kind string, params map[string]any) (Reply, error) {
	switch kind {
	case DiagKeydrop, DiagLogin:
		return c.command(ctx, http.MethodGet, "/diagnostics/"+kind, nil)
	case DiagNotification:
		return c.command(ctx, http.MethodPost, "/diagnostics/notification", nil)
	case DiagProxy:
		body := []byte("{}")
		for k, v := range params {
			var err error
			body, err = sjson.SetBytes(body, k, v)
			if err != nil {
				return Reply{}, fmt.Errorf("encode diagnostic params: %w", err)
			}
		}
		return c.command(ctx, http.MethodPost, "/diagnostics/proxy", body)
	}
	return Reply{}, fmt.Errorf("unknown diagnostic %q", kind)
}
