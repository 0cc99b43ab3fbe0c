package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/botctl/internal/client"
	"github.com/npratt/botctl/internal/config"
)

// loadConfig loads the layered config with the flags the operator set
// explicitly applied on top.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(v, overridesFromFlags(v, flags))
}

// overridesFromFlags collects the persistent flags that were set on the
// command line. Values come from v so a flag also accepts its env form.
func overridesFromFlags(v *viper.Viper, flags *pflag.FlagSet) config.Overrides {
	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		s := v.GetString(name)
		return &s
	}

	o := config.Overrides{
		BaseURL:  str(FlagBaseURL),
		WSURL:    str(FlagWSURL),
		Prefs:    str(FlagPrefs),
		EventLog: str(FlagEventLog),
	}
	if flags.Changed(FlagTimeout) {
		d := v.GetDuration(FlagTimeout)
		o.RequestTimeout = &d
	}
	return o
}

// oneShot builds a client without connecting, runs fn and tears the client
// down. One-shot commands never write the event log.
func oneShot(cfg *config.Config, logger *slog.Logger, fn func(c *client.Client) error, opts ...client.Option) error {
	cfg.Paths.EventLog = ""

	c, err := client.New(cfg, append([]client.Option{client.WithLogger(logger)}, opts...)...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Destroy()

	return fn(c)
}

// printOutcome prints a successful outcome's message and turns a failed one
// into an error.
func printOutcome(w io.Writer, out client.Outcome) error {
	if !out.OK {
		return errors.New(out.Message)
	}
	if out.Message != "" {
		_, _ = fmt.Fprintln(w, out.Message)
	}
	return nil
}

// commandContext bounds a one-shot command. Some commands make two requests.
func commandContext(parent context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 2*cfg.Backend.RequestTimeout)
}
