package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/muesli/termenv"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	Signal  string
	Payload any
	Context map[string]any
	RunID   string
	JSON    bool
	Quiet   bool
}

// Run triggers one signal and prints its result. The run error is returned
// after the result is printed.
func Run(ctx context.Context, app *App, opts RunOptions, out io.Writer) error {
	var runOpts []pathflow.RunOption
	if opts.RunID != "" {
		runOpts = append(runOpts, pathflow.WithRunID(opts.RunID))
	}
	if opts.Context != nil {
		runOpts = append(runOpts, pathflow.WithContext(opts.Context))
	}

	result, err := app.Controller.Run(ctx, opts.Signal, opts.Payload, runOpts...)
	if result == nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
		return err
	}
	if !opts.Quiet {
		PrintResult(out, result)
	}
	return err
}

// PrintResult renders a run for the terminal.
func PrintResult(w io.Writer, result *domain.Result) {
	o := termenv.NewOutput(w)

	status := o.String(string(result.Status)).Bold()
	if result.Status == domain.StatusCompleted {
		status = status.Foreground(o.Color("#22c55e"))
	} else {
		status = status.Foreground(o.Color("#ef4444"))
	}
	printSystemMessage(w, "Run '%s' of '%s' %s in %s", result.RunID, result.Signal, status, result.Duration())

	for _, e := range result.Trace {
		if e.Output == "" {
			fmt.Fprintf(w, "  %s\n", e.Action)
			continue
		}
		fmt.Fprintf(w, "  %s -> %s\n", e.Action, o.String(e.Output).Foreground(o.Color("#a78bfa")))
	}

	if result.Payload != nil {
		fmt.Fprintf(w, "payload: %s\n", compact(result.Payload))
	}
	if result.Context != nil && result.Context.Len() > 0 {
		fmt.Fprintln(w, "context:")
		result.Context.Range(func(k string, v any) bool {
			fmt.Fprintf(w, "  %s = %s\n", k, compact(v))
			return true
		})
	}
	if result.Error != "" {
		fmt.Fprintf(w, "error: %s\n", o.String(result.Error).Foreground(o.Color("#ef4444")))
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
