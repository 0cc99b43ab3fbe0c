package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/npratt/botctl/internal/api"
	"github.com/npratt/botctl/internal/notify"
)

// Outcome is the result of an operator command. Commands never return
// errors; failures are reported here and as an error notification.
type Outcome struct {
	OK      bool
	Message string
	Data    any
}

func (c *Client) succeed(msg string, data any) Outcome {
	c.notices.Notify(msg, notify.Success)
	return Outcome{OK: true, Message: msg, Data: data}
}

func (c *Client) fail(msg string, err error) Outcome {
	if err != nil {
		c.logger.Warn(msg, "error", err)
		msg = fmt.Sprintf("%s: %s", msg, reason(err))
	}
	c.notices.Notify(msg, notify.Error)
	return Outcome{OK: false, Message: msg}
}

// reason is the part of err worth showing to an operator.
func reason(err error) string {
	if errors.Is(err, api.ErrRejected) {
		return strings.TrimPrefix(err.Error(), api.ErrRejected.Error()+": ")
	}
	return err.Error()
}

func (c *Client) control(ctx context.Context, action api.Action, okMsg, failMsg string) Outcome {
	reply, err := c.api.Control(ctx, action)
	if err != nil {
		return c.fail(failMsg, err)
	}
	msg := okMsg
	if reply.Message != "" {
		msg = reply.Message
	}
	return c.succeed(msg, nil)
}

// Start asks the backend to start the bot.
func (c *Client) Start(ctx context.Context) Outcome {
	return c.control(ctx, api.ActionStart, "Bot started", "Failed to start bot")
}

// Stop asks the backend to stop the bot.
func (c *Client) Stop(ctx context.Context) Outcome {
	return c.control(ctx, api.ActionStop, "Bot stopped", "Failed to stop bot")
}

// Pause asks the backend to pause the bot.
func (c *Client) Pause(ctx context.Context) Outcome {
	return c.control(ctx, api.ActionPause, "Bot paused", "Failed to pause bot")
}

// Resume asks the backend to resume a paused bot.
func (c *Client) Resume(ctx context.Context) Outcome {
	return c.control(ctx, api.ActionResume, "Bot resumed", "Failed to resume bot")
}

// EmergencyStop halts the bot immediately. Success is announced as a
// warning with the emergency cue.
func (c *Client) EmergencyStop(ctx context.Context) Outcome {
	if _, err := c.api.Control(ctx, api.ActionEmergencyStop); err != nil {
		return c.fail("Emergency stop failed", err)
	}
	const msg = "Emergency stop activated"
	c.notices.Notify(msg, notify.Warning)
	c.notices.PlayCue(notify.Emergency)
	return Outcome{OK: true, Message: msg}
}

// SaveConfig validates and persists the current config view. Validation
// problems are returned in Data as []string.
func (c *Client) SaveConfig(ctx context.Context) Outcome {
	res, err := c.editor.Persist(ctx, c.views.Config())
	if err != nil {
		return c.fail("Failed to save configuration", err)
	}
	if len(res.Problems) > 0 {
		msg := "Invalid configuration: " + strings.Join(res.Problems, "; ")
		c.notices.Notify(msg, notify.Error)
		return Outcome{OK: false, Message: msg, Data: res.Problems}
	}
	return c.succeed("Configuration saved", nil)
}

// ResetConfig restores the backend defaults and reloads the config view,
// discarding local edits.
func (c *Client) ResetConfig(ctx context.Context) Outcome {
	if _, err := c.api.ResetConfig(ctx); err != nil {
		return c.fail("Failed to reset configuration", err)
	}
	cfg, err := c.api.GetConfig(ctx)
	if err != nil {
		return c.fail("Failed to reload configuration", err)
	}
	c.views.ReplaceConfig(cfg)
	return c.succeed("Configuration reset", nil)
}

// ReloadConfig replaces the config view with the persisted one.
func (c *Client) ReloadConfig(ctx context.Context) Outcome {
	cfg, err := c.api.GetConfig(ctx)
	if err != nil {
		return c.fail("Failed to reload configuration", err)
	}
	c.views.ReplaceConfig(cfg)
	return Outcome{OK: true, Message: "Configuration reloaded"}
}

// ExportReport downloads a report and writes it to bot_report.<format> in
// the export directory. Data holds the written path.
func (c *Client) ExportReport(ctx context.Context, format string) Outcome {
	format = strings.ToLower(strings.TrimSpace(format))
	data, err := c.api.Export(ctx, format)
	if err != nil {
		return c.fail("Failed to export report", err)
	}

	path := filepath.Join(c.exportDir, "bot_report."+format)
	if err := os.MkdirAll(c.exportDir, 0755); err != nil {
		return c.fail("Failed to export report", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return c.fail("Failed to export report", err)
	}
	return c.succeed(fmt.Sprintf("Report exported as %s", strings.ToUpper(format)), path)
}

// Reports lists reports between start and end (YYYY-MM-DD, either may be
// empty). Data holds the raw JSON.
func (c *Client) Reports(ctx context.Context, start, end string) Outcome {
	data, err := c.api.Reports(ctx, start, end)
	if err != nil {
		return c.fail("Failed to load reports", err)
	}
	return Outcome{OK: true, Data: data}
}

// RunDiagnostic runs a backend self test.
func (c *Client) RunDiagnostic(ctx context.Context, kind string, params map[string]any) Outcome {
	reply, err := c.api.Diagnostic(ctx, kind, params)
	if err != nil {
		return c.fail(fmt.Sprintf("Diagnostic %s failed", kind), err)
	}
	msg := reply.Message
	if msg == "" {
		msg = fmt.Sprintf("Diagnostic %s passed", kind)
	}
	return c.succeed(msg, nil)
}

// ClearCache clears the browser cache, keeping login sessions.
func (c *Client) ClearCache(ctx context.Context) Outcome {
	if _, err := c.api.ClearCache(ctx, true); err != nil {
		return c.fail("Failed to clear cache", err)
	}
	return c.succeed("Cache cleared, logins kept", nil)
}

// ResetStats clears the backend statistics and reloads the stats view.
func (c *Client) ResetStats(ctx context.Context) Outcome {
	if _, err := c.api.ResetStats(ctx); err != nil {
		return c.fail("Failed to reset statistics", err)
	}
	stats, err := c.api.Stats(ctx)
	if err != nil {
		c.views.ReplaceStats(map[string]any{})
		return c.fail("Statistics reset, but reloading them failed", err)
	}
	c.views.ReplaceStats(stats)
	return c.succeed("Statistics reset", nil)
}

// RefreshDetailedStats replaces the stats view with the detailed history.
func (c *Client) RefreshDetailedStats(ctx context.Context) Outcome {
	stats, err := c.api.StatsHistory(ctx)
	if err != nil {
		return c.fail("Failed to load detailed statistics", err)
	}
	c.views.ReplaceStats(stats)
	return Outcome{OK: true, Data: stats}
}

// ToggleSound flips the persisted sound preference.
func (c *Client) ToggleSound() Outcome {
	on, err := c.notices.ToggleSound()
	state := "off"
	if on {
		state = "on"
	}
	if err != nil {
		return c.fail("Sound "+state+" for this session only", err)
	}
	return Outcome{OK: true, Message: "Sound " + state, Data: on}
}
