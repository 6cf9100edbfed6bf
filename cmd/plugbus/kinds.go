package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/plugbus/internal/event"
)

// kindRow describes the handlers registered for one kind.
type kindRow struct {
	Kind       string         `json:"kind"`
	Handlers   int            `json:"handlers"`
	ByPriority map[string]int `json:"by_priority"`
}

func newKindsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds [pattern]",
		Short: "List event kinds with registered handlers",
		Long: `Load every plugin and list the kinds that have at least one handler.
A pattern such as 'player.*' or 'block.**' filters the list.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := startApp(cmd.Context(), flags, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer stopApp(a)

			rows := kindRows(a.Bus().Registry(), args)

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, mutedStyle("no handlers registered"))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tHANDLERS\tPRIORITIES")
			for _, r := range rows {
				var tiers string
				for _, p := range event.Priorities() {
					if n := r.ByPriority[p.String()]; n > 0 {
						tiers += fmt.Sprintf("%s:%d ", p, n)
					}
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Kind, r.Handlers, tiers)
			}
			return tw.Flush()
		},
	}
}

func kindRows(reg *event.Registry, args []string) []kindRow {
	kinds := reg.Kinds()
	if len(args) == 1 {
		kinds = reg.Match(event.Kind(args[0]))
	}

	rows := make([]kindRow, 0, len(kinds))
	for _, k := range kinds {
		list, ok := reg.Lookup(k)
		if !ok || list.Len() == 0 {
			continue
		}
		row := kindRow{Kind: string(k), ByPriority: make(map[string]int)}
		for _, r := range list.Snapshot() {
			row.Handlers++
			row.ByPriority[r.Priority().String()]++
		}
		rows = append(rows, row)
	}
	return rows
}
