package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/npratt/botctl/internal/api"
	"github.com/npratt/botctl/internal/client"
)

// newControlCmds returns the bot control commands.
func newControlCmds(a *app) []*cobra.Command {
	controls := []struct {
		use   string
		short string
		run   func(*client.Client, context.Context) client.Outcome
	}{
		{"start", "Start the bot", (*client.Client).Start},
		{"stop", "Stop the bot", (*client.Client).Stop},
		{"pause", "Pause the bot", (*client.Client).Pause},
		{"resume", "Resume a paused bot", (*client.Client).Resume},
		{"emergency-stop", "Halt the bot immediately", (*client.Client).EmergencyStop},
	}

	cmds := make([]*cobra.Command, 0, len(controls))
	for _, ctl := range controls {
		cmds = append(cmds, &cobra.Command{
			Use:   ctl.use,
			Short: ctl.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
					return printOutcome(a.out, ctl.run(c, ctx))
				})
			},
		})
	}
	return cmds
}

// parseAssignments splits key=value arguments.
func parseAssignments(args []string) ([][2]string, error) {
	out := make([][2]string, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out = append(out, [2]string{key, value})
	}
	return out, nil
}

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the bot configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the bot configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if out := c.ReloadConfig(ctx); !out.OK {
					return errors.New(out.Message)
				}
				data, err := json.MarshalIndent(c.Views().Config(), "", "  ")
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				_, _ = fmt.Fprintln(a.out, string(data))
				return nil
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set key=value...",
		Short: "Change configuration fields and save",
		Long: `Change one or more configuration fields and save them.

Values are parsed by field: numTabs and retryAttempts are integers,
executionSpeed is a number, the mode and toggle fields are booleans and
everything else is text. The whole configuration is validated before it is
saved; nothing is saved if any field is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assignments, err := parseAssignments(args)
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if out := c.ReloadConfig(ctx); !out.OK {
					return errors.New(out.Message)
				}
				for _, kv := range assignments {
					if err := c.Editor().SetFieldText(kv[0], kv[1]); err != nil {
						return err
					}
				}
				return printOutcome(a.out, c.SaveConfig(ctx))
			})
		},
	}

	proxyCmd := &cobra.Command{
		Use:   "proxy <tab> [address]",
		Short: "Assign a proxy to a tab, or clear it when no address is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("tab must be a number, got %q", args[0])
			}
			address := ""
			if len(args) == 2 {
				address = args[1]
			}
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if out := c.ReloadConfig(ctx); !out.OK {
					return errors.New(out.Message)
				}
				if err := c.Editor().SetProxy(tab, address); err != nil {
					return err
				}
				return printOutcome(a.out, c.SaveConfig(ctx))
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the backend's default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				return printOutcome(a.out, c.ResetConfig(ctx))
			})
		},
	}

	configCmd.AddCommand(showCmd, setCmd, proxyCmd, resetCmd)
	return configCmd
}

func newExportCmd(a *app) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Download a report to bot_report.<format>",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := a.v.GetString(FlagFormat)
			if format != api.FormatJSON && format != api.FormatCSV {
				return fmt.Errorf("--%s must be %s or %s, got %q", FlagFormat, api.FormatJSON, api.FormatCSV, format)
			}
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				out := c.ExportReport(ctx, format)
				if err := printOutcome(a.out, out); err != nil {
					return err
				}
				if path, ok := out.Data.(string); ok {
					_, _ = fmt.Fprintln(a.out, path)
				}
				return nil
			}, client.WithExportDir(a.v.GetString(FlagDir)))
		},
	}
	exportCmd.Flags().String(FlagFormat, api.FormatJSON, "Report format (json or csv)")
	exportCmd.Flags().String(FlagDir, ".", "Directory to write the report to")
	bindFlags(a.v, exportCmd.Flags())
	return exportCmd
}

func newReportsCmd(a *app) *cobra.Command {
	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "List reports, optionally between two dates (YYYY-MM-DD)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				out := c.Reports(ctx, a.v.GetString(FlagStart), a.v.GetString(FlagEnd))
				if !out.OK {
					return errors.New(out.Message)
				}
				return printJSON(a, out.Data)
			})
		},
	}
	reportsCmd.Flags().String(FlagStart, "", "First day to include (YYYY-MM-DD)")
	reportsCmd.Flags().String(FlagEnd, "", "Last day to include (YYYY-MM-DD)")
	bindFlags(a.v, reportsCmd.Flags())
	return reportsCmd
}

// printJSON pretty-prints raw JSON bytes, or marshals anything else.
func printJSON(a *app, data any) error {
	var buf bytes.Buffer
	switch d := data.(type) {
	case []byte:
		if err := json.Indent(&buf, d, "", "  "); err != nil {
			return fmt.Errorf("format response: %w", err)
		}
	default:
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		buf.Write(out)
	}
	_, _ = fmt.Fprintln(a.out, buf.String())
	return nil
}

func newDiagnoseCmd(a *app) *cobra.Command {
	diagnoseCmd := &cobra.Command{
		Use:       "diagnose <keydrop|login|notification|proxy>",
		Short:     "Run a backend self test",
		ValidArgs: []string{api.DiagKeydrop, api.DiagLogin, api.DiagNotification, api.DiagProxy},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			var params map[string]any
			if kind == api.DiagProxy {
				proxy := a.v.GetString(FlagProxy)
				if proxy == "" {
					return fmt.Errorf("--%s is required for the proxy test", FlagProxy)
				}
				params = map[string]any{"proxy": proxy}
			}
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				return printOutcome(a.out, c.RunDiagnostic(ctx, kind, params))
			})
		},
	}
	diagnoseCmd.Flags().String(FlagProxy, "", "Proxy address to test (host:port)")
	bindFlags(a.v, diagnoseCmd.Flags())
	return diagnoseCmd
}

func newCacheCmd(a *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the bot's browser cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the browser cache, keeping logins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				return printOutcome(a.out, c.ClearCache(ctx))
			})
		},
	})
	return cacheCmd
}

func newStatsCmd(a *app) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print detailed participation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				out := c.RefreshDetailedStats(ctx)
				if !out.OK {
					return errors.New(out.Message)
				}
				return printJSON(a, out.Data)
			})
		},
	}
	statsCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear the backend statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				return printOutcome(a.out, c.ResetStats(ctx))
			})
		},
	})
	return statsCmd
}

func soundLabel(on bool) string {
	if on {
		return "Sound on"
	}
	return "Sound off"
}

func newSoundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "sound [on|off|toggle]",
		Short:     "Show or change whether notifications play sounds",
		ValidArgs: []string{"on", "off", "toggle"},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				notices := c.Notices()
				if len(args) == 0 {
					_, _ = fmt.Fprintln(a.out, soundLabel(notices.SoundEnabled()))
					return nil
				}
				switch args[0] {
				case "toggle":
					return printOutcome(a.out, c.ToggleSound())
				default:
					on := args[0] == "on"
					if err := notices.SetSoundEnabled(on); err != nil {
						return fmt.Errorf("save sound preference: %w", err)
					}
					_, _ = fmt.Fprintln(a.out, soundLabel(on))
					return nil
				}
			})
		},
	}
}

func newEventsCmd(a *app) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recent events from the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			path := cfg.Paths.EventLog
			if path == "" {
				return errors.New("event log is disabled (paths.event_log is empty)")
			}

			if a.v.GetBool(FlagFollow) {
				return tailFollow(cmd.Context(), a.out, path)
			}
			return tailLast(a.out, path, a.v.GetInt(FlagCount))
		},
	}
	eventsCmd.Flags().Bool(FlagFollow, false, "Follow event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")
	bindFlags(a.v, eventsCmd.Flags())
	return eventsCmd
}
