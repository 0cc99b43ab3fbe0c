// Package configedit applies operator edits to the bot configuration,
// validates it and persists it to the backend.
package configedit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/npratt/botctl/internal/views"
)

// Sentinel errors.
var (
	ErrTabOutOfRange = errors.New("tab index out of range")
	ErrInvalidValue  = errors.New("invalid value")
)

// WebhookPrefix is the only accepted prefix for a non-empty webhook URL.
const WebhookPrefix = "https://discord.com/api/webhooks/"

// Field kinds used to coerce operator text.
type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
)

var fieldKinds = map[string]fieldKind{
	views.KeyNumTabs:              kindInt,
	views.KeyRetryAttempts:        kindInt,
	views.KeyExecutionSpeed:       kindFloat,
	views.KeyHeadlessMode:         kindBool,
	views.KeyMiniWindowMode:       kindBool,
	views.KeyEnableStealth:        kindBool,
	views.KeyKeepCookies:          kindBool,
	views.KeyDiscordNotifications: kindBool,
	views.KeySystemMonitoring:     kindBool,
	views.KeyEnableLogging:        kindBool,
	views.KeyAutoRestart:          kindBool,
	views.KeyDiscordWebhook:       kindString,
}

// Persister stores a configuration on the backend.
type Persister interface {
	UpdateConfig(ctx context.Context, cfg views.ConfigView) error
}

// PersistFunc adapts a function to Persister.
type PersistFunc func(ctx context.Context, cfg views.ConfigView) error

// UpdateConfig calls f.
func (f PersistFunc) UpdateConfig(ctx context.Context, cfg views.ConfigView) error {
	return f(ctx, cfg)
}

// Result describes a persist attempt.
type Result struct {
	Problems  []string
	Persisted bool
}

// Editor edits the configuration held by a Reconciler.
type Editor struct {
	views     *views.Reconciler
	persister Persister
	logger    *slog.Logger
}

// New creates an Editor.
func New(r *views.Reconciler, p Persister, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		views:     r,
		persister: p,
		logger:    logger.With("component", "configedit"),
	}
}

// SetProxy assigns address to tab, or removes the assignment when address
// is empty. Either way the config is marked dirty.
func (e *Editor) SetProxy(tab int, address string) error {
	n, ok := e.views.Config().NumTabs()
	if tab < 1 || !ok || tab > n {
		return fmt.Errorf("%w: tab %d (tabs: %d)", ErrTabOutOfRange, tab, n)
	}

	address = strings.TrimSpace(address)
	if address == "" {
		e.views.RemoveTabProxy(tab)
		return nil
	}
	e.views.SetTabProxy(tab, address)
	return nil
}

// SetField records a typed edit.
func (e *Editor) SetField(key string, value any) {
	e.views.SetConfigField(key, value)
}

// SetFieldText parses raw according to the field's type and records it.
// Unknown keys are stored as strings.
func (e *Editor) SetFieldText(key, raw string) error {
	value, err := ParseFieldValue(key, raw)
	if err != nil {
		return err
	}
	e.views.SetConfigField(key, value)
	return nil
}

// ParseFieldValue converts operator text into the type stored for key.
func ParseFieldValue(key, raw string) (any, error) {
	raw = strings.TrimSpace(raw)

	switch fieldKinds[key] {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidValue, key, raw)
		}
		return float64(n), nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidValue, key, raw)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be true or false, got %q", ErrInvalidValue, key, raw)
		}
		return b, nil
	}

	if key == views.KeyTabProxies {
		return nil, fmt.Errorf("%w: set proxies per tab", ErrInvalidValue)
	}
	return raw, nil
}

// Validate returns one message per rule the configuration breaks.
// An empty result means the configuration may be saved.
func Validate(cfg views.ConfigView) []string {
	var problems []string

	if n, ok := cfg.Number(views.KeyNumTabs); !ok || n < 1 || n > 100 {
		problems = append(problems, "Number of tabs must be between 1 and 100")
	}
	if s, ok := cfg.Number(views.KeyExecutionSpeed); !ok || s < 0.1 || s > 10 {
		problems = append(problems, "Execution speed must be between 0.1 and 10")
	}
	if r, ok := cfg.Number(views.KeyRetryAttempts); !ok || r < 1 || r > 20 {
		problems = append(problems, "Retry attempts must be between 1 and 20")
	}
	if hook := cfg.String(views.KeyDiscordWebhook); hook != "" && !strings.HasPrefix(hook, WebhookPrefix) {
		problems = append(problems, "Invalid Discord webhook URL")
	}

	return problems
}

// Persist saves cfg through the persister. It refuses, without calling the
// persister, when validation fails. The dirty flag is cleared only after a
// successful save.
func (e *Editor) Persist(ctx context.Context, cfg views.ConfigView) (Result, error) {
	if problems := Validate(cfg); len(problems) > 0 {
		e.logger.Debug("persist refused", "problems", problems)
		return Result{Problems: problems}, nil
	}

	if err := e.persister.UpdateConfig(ctx, cfg); err != nil {
		return Result{}, fmt.Errorf("persist config: %w", err)
	}

	e.views.MarkPersisted()
	return Result{Persisted: true}, nil
}
