package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/plugbus/internal/app"
	"github.com/dshills/plugbus/internal/plugin"
)

// pluginRow describes one discovered plugin.
type pluginRow struct {
	Name          string   `json:"name"`
	Version       string   `json:"version,omitempty"`
	State         string   `json:"state"`
	Registrations int      `json:"registrations"`
	Depend        []string `json:"depend,omitempty"`
	Path          string   `json:"path"`
	Error         string   `json:"error,omitempty"`
}

func newPluginsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List plugins and their state",
		Long: `Discover and load every plugin on the search paths, then list each one
with its state and number of registered handlers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := startApp(cmd.Context(), flags, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer stopApp(a)

			rows, err := pluginRows(a)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, mutedStyle("no plugins found"))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVERSION\tSTATE\tHANDLERS\tPATH")
			for _, r := range rows {
				state := okStyle(r.State)
				if r.Error != "" {
					state = failStyle(r.State)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.Name, r.Version, state, r.Registrations, r.Path)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, r := range rows {
				if r.Error != "" {
					fmt.Fprintf(out, "%s %s: %s\n", failStyle("error"), r.Name, r.Error)
				}
			}
			return nil
		},
	}
}

// pluginRows lists discovered plugins, with host state for loaded ones.
func pluginRows(a *app.Application) ([]pluginRow, error) {
	infos, err := a.Plugins().Discover()
	if err != nil {
		return nil, err
	}

	rows := make([]pluginRow, 0, len(infos))
	for _, info := range infos {
		row := pluginRow{Name: info.Name, Path: info.Path, State: "not loaded"}
		if info.Manifest != nil {
			row.Version = info.Manifest.Version
			row.Depend = info.Manifest.Depend
		}
		if h, ok := a.Plugins().Get(info.Name); ok {
			stats := h.Stats()
			row.State = stats.State.String()
			row.Registrations = stats.Registrations
		} else if err := a.Plugins().Failure(info.Name); err != nil {
			row.State = plugin.StateError.String()
			row.Error = err.Error()
		}
		rows = append(rows, row)
	}
	return rows, nil
}
