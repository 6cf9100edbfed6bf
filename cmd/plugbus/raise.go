package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/dshills/plugbus/internal/app"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newRaiseCmd(flags *globalFlags) *cobra.Command {
	var cancellable bool

	cmd := &cobra.Command{
		Use:   "raise <kind> [key=value...]",
		Short: "Load plugins and raise one event",
		Long: `Load every plugin, raise one event and print the dispatch report.

Values are parsed as JSON when possible (numbers, booleans, objects,
arrays); anything else is a string.

Examples:
  plugbus raise player.chat player=alex message="hello there"
  plugbus raise block.break player=alex block=stone 'at={"x":1,"y":64,"z":-3}'
  plugbus raise custom.thing --cancellable answer=42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := startApp(ctx, flags, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer stopApp(a)

			report, err := a.Raise(ctx, app.Request{Kind: args[0], Data: data, Cancellable: cancellable})
			if err != nil {
				return err
			}

			view := app.NewReportView(report)
			if flags.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printReport(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cancellable, "cancellable", false, "Make an untyped event cancellable")
	return cmd
}

// parseAssignments turns key=value arguments into event data.
func parseAssignments(args []string) (map[string]any, error) {
	data := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", arg)
		}
		data[key] = parseValue(raw)
	}
	return data, nil
}

func parseValue(raw string) any {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		var v any
		if err := json.UnmarshalFromString(raw, &v); err == nil {
			return v
		}
	}
	return raw
}

func printReport(w io.Writer, v app.ReportView) {
	status := okStyle("delivered")
	if v.Cancelled {
		status = warnStyle("cancelled")
	}
	fmt.Fprintf(w, "%s %s\n", boldStyle(v.Kind), status)
	fmt.Fprintf(w, "  %s\n", mutedStyle(fmt.Sprintf("id %s, %d invoked, %d skipped, %.3fms",
		v.ID, v.Invoked, v.Skipped, v.DurationMS)))

	if len(v.Data) > 0 {
		keys := make([]string, 0, len(v.Data))
		for k := range v.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %v\n", k, v.Data[k])
		}
	}

	for _, f := range v.Failures {
		fmt.Fprintf(w, "  %s %s [%s]: %s\n", failStyle("failed"), f.Owner, f.Priority, f.Error)
	}
}
