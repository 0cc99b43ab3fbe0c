package tui

import (
	"context"
	"sync"

	"github.com/npratt/botctl/internal/client"
	"github.com/npratt/botctl/internal/conn"
	"github.com/npratt/botctl/internal/notify"
	"github.com/npratt/botctl/internal/views"
)

type fakeViews struct {
	config views.ConfigView
	status views.StatusView
	stats  map[string]any
	system map[string]any
	dirty  bool
}

func (f *fakeViews) Config() views.ConfigView     { return f.config }
func (f *fakeViews) Status() views.StatusView     { return f.status }
func (f *fakeViews) Stats() map[string]any        { return f.stats }
func (f *fakeViews) SystemInfo() map[string]any   { return f.system }
func (f *fakeViews) Dirty() bool                  { return f.dirty }
func (f *fakeViews) SuccessRate() (float64, bool) { return 75, true }

func sampleViews() *fakeViews {
	cfg := views.NewConfigView()
	cfg.Fields[views.KeyNumTabs] = 3.0
	cfg.Fields[views.KeyExecutionSpeed] = 1.5
	cfg.Fields[views.KeyRetryAttempts] = 5.0
	cfg.TabProxies[1] = "10.0.0.1:8080"

	return &fakeViews{
		config: cfg,
		status: views.StatusView{State: "running", DisplayText: "Running"},
		stats: map[string]any{
			"total_participations":      40.0,
			"successful_participations": 30.0,
			"failed_participations":     10.0,
		},
		system: map[string]any{
			"cpu_percent":    23.5,
			"memory_percent": 61.2,
			"memory_used":    4294967296.0,
			"uptime":         3725.0,
		},
	}
}

type fakeNotices struct {
	mu        sync.Mutex
	records   []notify.Record
	dismissed int
	sound     bool
}

func (f *fakeNotices) Active() []notify.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Record(nil), f.records...)
}

func (f *fakeNotices) DismissAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
	f.records = nil
}

func (f *fakeNotices) SoundEnabled() bool { return f.sound }

type fakeConn struct{ state conn.State }

func (f fakeConn) State() conn.State { return f.state }

type fakeCommands struct {
	mu    sync.Mutex
	calls []string
	out   client.Outcome
}

func (f *fakeCommands) record(name string) client.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	out := f.out
	if out.Message == "" {
		out.Message = name + " ok"
	}
	return out
}

func (f *fakeCommands) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCommands) Start(context.Context) client.Outcome  { return f.record("start") }
func (f *fakeCommands) Stop(context.Context) client.Outcome   { return f.record("stop") }
func (f *fakeCommands) Pause(context.Context) client.Outcome  { return f.record("pause") }
func (f *fakeCommands) Resume(context.Context) client.Outcome { return f.record("resume") }
func (f *fakeCommands) EmergencyStop(context.Context) client.Outcome {
	return f.record("emergency")
}
func (f *fakeCommands) SaveConfig(context.Context) client.Outcome   { return f.record("save") }
func (f *fakeCommands) ReloadConfig(context.Context) client.Outcome { return f.record("reload") }
func (f *fakeCommands) ResetConfig(context.Context) client.Outcome  { return f.record("reset") }
func (f *fakeCommands) ClearCache(context.Context) client.Outcome   { return f.record("clear cache") }
func (f *fakeCommands) ResetStats(context.Context) client.Outcome   { return f.record("reset stats") }
func (f *fakeCommands) ToggleSound() client.Outcome                 { return f.record("sound") }
