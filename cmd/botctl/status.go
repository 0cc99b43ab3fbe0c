package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/npratt/botctl/internal/api"
	"github.com/npratt/botctl/internal/client"
	"github.com/npratt/botctl/internal/views"
)

// statusReport is what the status command prints.
type statusReport struct {
	Status      string           `json:"status"`
	StatusText  string           `json:"status_text,omitempty"`
	SuccessRate *float64         `json:"success_rate,omitempty"`
	Stats       map[string]any   `json:"stats"`
	System      map[string]any   `json:"system"`
	Config      views.ConfigView `json:"config"`
	Tabs        []tabReport      `json:"tabs,omitempty"`
}

type tabReport struct {
	ID     int    `json:"id"`
	Status string `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
	Proxy  string `json:"proxy,omitempty"`
}

func newStatusReport(r *views.Reconciler, tabs []api.Tab) statusReport {
	status := r.Status()
	report := statusReport{
		Status:     status.State,
		StatusText: status.DisplayText,
		Stats:      r.Stats(),
		System:     r.SystemInfo(),
		Config:     r.Config(),
	}
	if rate, ok := r.SuccessRate(); ok {
		report.SuccessRate = &rate
	}
	for _, t := range tabs {
		report.Tabs = append(report.Tabs, tabReport{ID: t.ID, Status: t.Status, URL: t.URL, Proxy: t.Proxy})
	}
	return report
}

func printMap(w io.Writer, title string, m map[string]any) {
	if len(m) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "%s:\n", title)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", k, m[k])
	}
}

// printStatus writes the human-readable form of r.
func printStatus(w io.Writer, r statusReport) {
	state := strings.ToUpper(r.Status)
	if state == "" {
		state = "UNKNOWN"
	}
	if r.StatusText != "" && !strings.EqualFold(r.StatusText, r.Status) {
		_, _ = fmt.Fprintf(w, "Status: %s (%s)\n", state, r.StatusText)
	} else {
		_, _ = fmt.Fprintf(w, "Status: %s\n", state)
	}

	if n, ok := r.Config.NumTabs(); ok {
		_, _ = fmt.Fprintf(w, "Tabs configured: %d\n", n)
	}
	if r.SuccessRate != nil {
		_, _ = fmt.Fprintf(w, "Success rate: %.1f%%\n", *r.SuccessRate)
	}

	printMap(w, "Stats", r.Stats)
	printMap(w, "System", r.System)

	if len(r.Tabs) > 0 {
		_, _ = fmt.Fprintln(w, "Browser tabs:")
		for _, t := range r.Tabs {
			line := fmt.Sprintf("  #%d %s", t.ID, t.Status)
			if t.Proxy != "" {
				line += " proxy=" + t.Proxy
			}
			if t.URL != "" {
				line += " " + t.URL
			}
			_, _ = fmt.Fprintln(w, line)
		}
	}
}

func newStatusCmd(a *app) *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show bot status, statistics and browser tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				loadErr := c.LoadSnapshots(ctx)
				tabs, tabsErr := c.API().Tabs(ctx)
				if loadErr != nil && tabsErr != nil {
					return fmt.Errorf("backend unreachable: %w", errors.Join(loadErr, tabsErr))
				}
				if tabsErr != nil {
					a.logger.Debug("tab listing unavailable", "error", tabsErr)
				}

				report := newStatusReport(c.Views(), tabs)

				if a.v.GetBool(FlagJSON) {
					data, err := json.MarshalIndent(report, "", "  ")
					if err != nil {
						return fmt.Errorf("marshal status: %w", err)
					}
					_, _ = fmt.Fprintln(a.out, string(data))
					return nil
				}

				printStatus(a.out, report)
				return nil
			})
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")
	bindFlags(a.v, statusCmd.Flags())
	return statusCmd
}
