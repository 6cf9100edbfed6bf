package app

import (
	"bufio"
	"context"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLine bounds one JSON-lines request.
const maxLine = 1 << 20

// ErrorView is written for a request that could not be raised.
type ErrorView struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// Serve reads one Request per line from r and writes one ReportView, or
// an ErrorView, per request to w. Blank lines are ignored. It returns when
// r is exhausted or ctx is done.
func (app *Application) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLine)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	enc := json.NewEncoder(w)
	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			n++
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := enc.Encode(app.handleLine(ctx, n, line)); err != nil {
				return err
			}
		}
	}
}

func (app *Application) handleLine(ctx context.Context, n int, line string) any {
	var req Request
	if err := json.UnmarshalFromString(line, &req); err != nil {
		return ErrorView{Line: n, Error: "decode request: " + err.Error()}
	}
	report, err := app.Raise(ctx, req)
	if err != nil {
		return ErrorView{Line: n, Error: err.Error()}
	}
	if !report.OK() {
		app.logger.DebugContext(ctx, "dispatch had failures",
			"kind", req.Kind, "failures", len(report.Failures))
	}
	return NewReportView(report)
}
