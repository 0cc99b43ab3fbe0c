package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/npratt/botctl/internal/client"
	"github.com/npratt/botctl/internal/config"
	"github.com/npratt/botctl/internal/notify"
	"github.com/npratt/botctl/internal/shutdown"
	"github.com/npratt/botctl/internal/tui"
)

var version = "dev"

// app carries what every command shares.
type app struct {
	logger   *slog.Logger
	logLevel *slog.LevelVar
	out      io.Writer
	v        *viper.Viper
}

func (a *app) config(cmd *cobra.Command) (*config.Config, error) {
	return loadConfig(a.v, cmd.Flags())
}

// withClient runs fn against a client built for a single command.
func (a *app) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error, opts ...client.Option) error {
	cfg, err := a.config(cmd)
	if err != nil {
		return err
	}
	return oneShot(cfg, a.logger, func(c *client.Client) error {
		ctx, cancel := commandContext(cmd.Context(), cfg)
		defer cancel()
		return fn(ctx, c)
	}, opts...)
}

// bindFlags binds every flag in fs to viper under its own name.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// runSession connects a full client and shows its events until the
// operator quits or the process is signalled.
func (a *app) runSession(ctx context.Context, cfg *config.Config, simple bool) error {
	logger := a.logger
	if !simple {
		// Dashboard mode: logs go to a file so they never touch the screen
		dashLog, err := openDashboardLog(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = dashLog.Close() }()
		logger = sessionLogger(dashLog.w, a.logLevel, cfg)
		slog.SetDefault(logger)
	}

	var audio notify.AudioOutput = notify.Discard{}
	if cfg.Notify.Bell {
		audio = notify.NewBell(a.out)
	}

	c, err := client.New(cfg, client.WithLogger(logger), client.WithAudio(audio))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Destroy()

	// Subscribe before Init so the first connection events are shown
	stream := c.Bus().Stream(cfg.Dashboard.EventBuffer)
	defer stream.Close()

	logger.Info("botctl starting",
		"version", version,
		"base_url", cfg.Backend.BaseURL,
		"ws_url", cfg.Backend.WSURL,
		"dashboard", !simple,
	)

	if err := c.Init(ctx); err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	dash := tui.New(stream.C(),
		tui.WithViews(c.Views()),
		tui.WithNotices(c.Notices()),
		tui.WithConnection(c.Connection()),
		tui.WithCommands(c),
		tui.WithOutput(a.out),
		tui.WithSimple(simple),
		tui.WithCommandTimeout(2*cfg.Backend.RequestTimeout),
	)

	return shutdown.RunWithGracefulShutdown(
		ctx,
		logger,
		10*time.Second,
		func(runCtx context.Context) error {
			return dash.Run()
		},
		func(shutdownCtx context.Context) error {
			// Closing the bus closes the stream, which ends the dashboard
			c.Destroy()
			return nil
		},
	)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "botctl",
		Short: "Monitor and control a bot backend",
		Long: `botctl keeps a live, consistent view of a bot backend's configuration,
run status, statistics and system telemetry, and relays operator commands
back to it.

Use "botctl dash" for the live dashboard or "botctl watch" for line output.
The remaining commands talk to the backend once and exit.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.v.GetBool(FlagVerbose) {
				a.logLevel.Set(slog.LevelDebug)
				a.logger.Debug("verbose logging enabled")
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .botctl/config.yaml)")
	rootCmd.PersistentFlags().String(FlagBaseURL, "", "Backend HTTP base URL (also moves the websocket URL)")
	rootCmd.PersistentFlags().String(FlagWSURL, "", "Backend websocket URL")
	rootCmd.PersistentFlags().Duration(FlagTimeout, 0, "Per-request timeout")
	rootCmd.PersistentFlags().String(FlagPrefs, "", "Preference database path (empty keeps preferences in memory)")
	rootCmd.PersistentFlags().String(FlagEventLog, "", "Event log path")
	bindFlags(a.v, rootCmd.PersistentFlags())

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.out, "botctl %s\n", version)
		},
	}

	dashCmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the live dashboard",
		Long: `Connect to the backend and show the live dashboard.

Falls back to line output when stdout is not a terminal, the terminal is
too small, dashboard.enabled is false or --simple is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			simple := a.v.GetBool(FlagSimple) || !cfg.Dashboard.Enabled ||
				!term.IsTerminal(int(os.Stdout.Fd()))
			return a.runSession(cmd.Context(), cfg, simple)
		},
	}
	dashCmd.Flags().Bool(FlagSimple, false, "Print one line per event instead of the dashboard")
	bindFlags(a.v, dashCmd.Flags())

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect and print one line per event",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			return a.runSession(cmd.Context(), cfg, true)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dashCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(newStatusCmd(a))
	for _, cmd := range newControlCmds(a) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(newReportsCmd(a))
	rootCmd.AddCommand(newDiagnoseCmd(a))
	rootCmd.AddCommand(newCacheCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))
	rootCmd.AddCommand(newSoundCmd(a))
	rootCmd.AddCommand(newEventsCmd(a))

	return rootCmd
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	v := viper.GetViper()
	config.ConfigureEnv(v)

	a := &app{
		logger:   logger,
		logLevel: logLevel,
		out:      os.Stdout,
		v:        v,
	}

	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
