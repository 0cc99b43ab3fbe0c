package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/tidwall/gjson"

	"github.com/npratt/botctl/internal/configedit"
	"github.com/npratt/botctl/internal/testutil"
)

// runCLI executes botctl against backend and returns what it printed.
func runCLI(t *testing.T, backend *testutil.FakeBackend, args ...string) (string, error) {
	t.Helper()
	testutil.ProjectDir(t, "")

	var out bytes.Buffer
	a := &app{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		logLevel: &slog.LevelVar{},
		out:      &out,
		v:        viper.New(),
	}

	cmd := newRootCmd(a)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	full := append([]string{}, args...)
	if backend != nil {
		full = append(full, "--"+FlagBaseURL, backend.URL())
	}
	if !containsFlag(args, FlagPrefs) {
		full = append(full, "--"+FlagPrefs+"=")
	}
	cmd.SetArgs(full)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func containsFlag(args []string, name string) bool {
	for _, a := range args {
		if a == "--"+name || strings.HasPrefix(a, "--"+name+"=") {
			return true
		}
	}
	return false
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, nil, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "botctl dev\n" {
		t.Errorf("expected version line, got %q", out)
	}
}

func TestControlCommands(t *testing.T) {
	tests := []struct {
		cmd    string
		action string
	}{
		{"start", "start"},
		{"stop", "stop"},
		{"pause", "pause"},
		{"resume", "resume"},
		{"emergency-stop", "emergency_stop"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			backend := testutil.NewFakeBackend(t)
			backend.Handle(http.MethodPost, "/bot/control", http.StatusOK, `{"success": true}`)

			out, err := runCLI(t, backend, tt.cmd)
			if err != nil {
				t.Fatalf("%s: %v", tt.cmd, err)
			}
			if strings.TrimSpace(out) == "" {
				t.Error("expected an outcome message")
			}

			reqs := backend.RequestsTo(http.MethodPost, "/bot/control")
			if len(reqs) != 1 {
				t.Fatalf("expected 1 control request, got %d", len(reqs))
			}
			if got := gjson.Get(reqs[0].Body, "action").String(); got != tt.action {
				t.Errorf("action = %q, want %q", got, tt.action)
			}
		})
	}
}

func TestControlCommand_Rejected(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Handle(http.MethodPost, "/bot/control", http.StatusOK, testutil.ReplyRejected)

	_, err := runCLI(t, backend, "start")
	if err == nil {
		t.Fatal("expected error for rejected start")
	}
	if err.Error() != "Failed to start bot: Bot already running" {
		t.Errorf("unexpected error %q", err)
	}
}

func TestStatusCommand(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	testutil.ServeSnapshots(backend)
	backend.Handle(http.MethodGet, "/bot/tabs", http.StatusOK, testutil.SampleTabsJSON)

	out, err := runCLI(t, backend, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{
		"Status: RUNNING",
		"Tabs configured: 3",
		"Success rate: 75.0%",
		"total_participations: 40",
		"cpu_percent: 23.5",
		"#1 active https://example.test/a",
		"#2 idle",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestStatusCommand_JSON(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	testutil.ServeSnapshots(backend)
	backend.Handle(http.MethodGet, "/bot/tabs", http.StatusOK, testutil.SampleTabsJSON)

	out, err := runCLI(t, backend, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	if !gjson.Valid(out) {
		t.Fatalf("expected JSON, got %q", out)
	}
	if got := gjson.Get(out, "status").String(); got != "running" {
		t.Errorf("status = %q, want running", got)
	}
	if got := gjson.Get(out, "success_rate").Float(); got != 75 {
		t.Errorf("success_rate = %v, want 75", got)
	}
	if got := gjson.Get(out, "tabs.#").Int(); got != 2 {
		t.Errorf("tabs = %d, want 2", got)
	}
	if got := gjson.Get(out, "config.numTabs").Int(); got != 3 {
		t.Errorf("config.numTabs = %d, want 3", got)
	}
}

func TestStatusCommand_BackendDown(t *testing.T) {
	backend := testutil.NewFakeBackend(t)

	if _, err := runCLI(t, backend, "status"); err == nil {
		t.Error("expected error when nothing answers")
	}
}

func TestConfigShow(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	testutil.ServeSnapshots(backend)

	out, err := runCLI(t, backend, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if got := gjson.Get(out, "numTabs").Int(); got != 3 {
		t.Errorf("numTabs = %d, want 3", got)
	}
	if got := gjson.Get(out, "tabProxies.1").String(); got != "10.0.0.1:8080" {
		t.Errorf("tabProxies.1 = %q", got)
	}
}

func TestConfigSet(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	testutil.ServeSnapshots(backend)
	backend.Handle(http.MethodPost, "/config", http.StatusOK, testutil.ReplyOK)

	out, err := runCLI(t, backend, "config", "set", "numTabs=2", "executionSpeed=1.5", "headlessMode=true")
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	if !strings.Contains(out, "Configuration saved") {
		t.Errorf("expected saved message, got %q", out)
	}

	reqs := backend.RequestsTo(http.MethodPost, "/config")
	if len(reqs) != 1 {
		t.Fatalf("expected 1 save request, got %d", len(reqs))
	}
	body := reqs[0].Body
	if got := gjson.Get(body, "numTabs").Int(); got != 2 {
		t.Errorf("numTabs = %d, want 2", got)
	}
	if got := gjson.Get(body, "executionSpeed").Float(); got != 1.5 {
		t.Errorf("executionSpeed = %v, want 1.5", got)
	}
	if !gjson.Get(body, "headlessMode").Bool() {
		t.Error("expected headlessMode true")
	}
	// Shrinking to two tabs drops the proxy for tab 3.
	if gjson.Get(body, "tabProxies.3").Exists() {
		t.Error("expected tab 3 proxy pruned")
	}
}

func TestConfigSet_BadInput(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	testutil.ServeSnapshots(backend)

	if _, err := runCLI(t, backend, "config", "set", "numTabs"); err == nil {
		t.Error("expected error for missing '='")
	}

	_, err := runCLI(t, backend, "config", "set", "numTabs=many")
	if !errors.Is(err, configedit.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if n := len(backend.RequestsTo(http.MethodPost, "/config")); n != 0 {
		t.Errorf("expected no save requests, got %d", n)
	}
}

func TestConfigProxy(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	testutil.ServeSnapshots(backend)
	backend.Handle(http.MethodPost, "/config", http.StatusOK, testutil.ReplyOK)

	if _, err := runCLI(t, backend, "config", "proxy", "2", "10.0.0.2:9000"); err != nil {
		t.Fatalf("config proxy: %v", err)
	}
	reqs := backend.RequestsTo(http.MethodPost, "/config")
	if len(reqs) != 1 {
		t.Fatalf("expected 1 save request, got %d", len(reqs))
	}
	if got := gjson.Get(reqs[0].Body, "tabProxies.2").String(); got != "10.0.0.2:9000" {
		t.Errorf("tabProxies.2 = %q", got)
	}

	_, err := runCLI(t, backend, "config", "proxy", "9", "10.0.0.9:9000")
	if !errors.Is(err, configedit.ErrTabOutOfRange) {
		t.Errorf("expected ErrTabOutOfRange, got %v", err)
	}
}

func TestExportCommand(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Handle(http.MethodGet, "/reports/export", http.StatusOK, `{"rows": []}`)
	dir := t.TempDir()

	out, err := runCLI(t, backend, "export", "--format", "json", "--dir", dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(dir, "bot_report.json")
	if !strings.Contains(out, path) {
		t.Errorf("expected output to name %s, got %q", path, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"rows": []}` {
		t.Errorf("unexpected report %q", data)
	}
}

func TestExportCommand_BadFormat(t *testing.T) {
	if _, err := runCLI(t, nil, "export", "--format", "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestReportsCommand(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Handle(http.MethodGet, "/reports", http.StatusOK, `[{"date":"2026-01-01"}]`)

	out, err := runCLI(t, backend, "reports", "--start", "2026-01-01", "--end", "2026-01-31")
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if !strings.Contains(out, `"date": "2026-01-01"`) {
		t.Errorf("expected indented report list, got %q", out)
	}
	reqs := backend.RequestsTo(http.MethodGet, "/reports")
	if len(reqs) != 1 || !strings.Contains(reqs[0].Query, "start_date=2026-01-01") {
		t.Errorf("expected date range in query, got %+v", reqs)
	}
}

func TestDiagnoseCommand(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Handle(http.MethodPost, "/diagnostics/proxy", http.StatusOK, `{"success": true, "message": "Proxy reachable"}`)

	if _, err := runCLI(t, backend, "diagnose", "proxy"); err == nil {
		t.Error("expected error without --proxy")
	}
	if _, err := runCLI(t, backend, "diagnose", "bogus"); err == nil {
		t.Error("expected error for unknown diagnostic")
	}

	out, err := runCLI(t, backend, "diagnose", "proxy", "--proxy", "10.0.0.1:8080")
	if err != nil {
		t.Fatalf("diagnose proxy: %v", err)
	}
	if !strings.Contains(out, "Proxy reachable") {
		t.Errorf("expected backend message, got %q", out)
	}
	reqs := backend.RequestsTo(http.MethodPost, "/diagnostics/proxy")
	if len(reqs) != 1 || gjson.Get(reqs[0].Body, "proxy").String() != "10.0.0.1:8080" {
		t.Errorf("expected proxy in request body, got %+v", reqs)
	}
}

func TestCacheAndStatsCommands(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	testutil.ServeSnapshots(backend)
	backend.Handle(http.MethodPost, "/cache/clear", http.StatusOK, testutil.ReplyOK)
	backend.Handle(http.MethodPost, "/stats/reset", http.StatusOK, testutil.ReplyOK)

	out, err := runCLI(t, backend, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out, "Cache cleared") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = runCLI(t, backend, "stats", "reset")
	if err != nil {
		t.Fatalf("stats reset: %v", err)
	}
	if !strings.Contains(out, "Statistics reset") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSoundCommand_Persists(t *testing.T) {
	prefs := "--" + FlagPrefs + "=" + filepath.Join(t.TempDir(), "prefs.db")

	out, err := runCLI(t, nil, "sound", prefs)
	if err != nil {
		t.Fatalf("sound: %v", err)
	}
	if out != "Sound on\n" {
		t.Errorf("expected default on, got %q", out)
	}

	if _, err := runCLI(t, nil, "sound", "off", prefs); err != nil {
		t.Fatalf("sound off: %v", err)
	}
	out, _ = runCLI(t, nil, "sound", prefs)
	if out != "Sound off\n" {
		t.Errorf("expected persisted off, got %q", out)
	}

	out, err = runCLI(t, nil, "sound", "toggle", prefs)
	if err != nil {
		t.Fatalf("sound toggle: %v", err)
	}
	if out != "Sound on\n" {
		t.Errorf("expected toggled on, got %q", out)
	}
}

func TestEventsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	lines := openedLine(t, "ws://first/ws") + "\n" + openedLine(t, "ws://second/ws") + "\n"
	if err := os.WriteFile(path, []byte(lines), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := runCLI(t, nil, "events", "--count", "1", "--"+FlagEventLog, path)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if strings.Contains(out, "ws://first/ws") || !strings.Contains(out, "connected: ws://second/ws") {
		t.Errorf("expected only the last event, got %q", out)
	}
}
