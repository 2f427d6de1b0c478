package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// EnvPrefix is prepended to the upper-cased context keys passed to a tool.
const EnvPrefix = "PATHFLOW_ARG_"

// PayloadEnv carries the JSON encoded payload.
const PayloadEnv = "PATHFLOW_PAYLOAD"

// Outputs of the exec action.
const (
	Success = "success"
	Error   = "error"
)

// Runner executes allow-listed local processes. Context values reach the
// process as environment variables, never as command-line arguments.
type Runner struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	baseDir string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithTools populates the allow-list, usually from LoadTools.
func WithTools(tools map[string]Tool) RunnerOption {
	return func(r *Runner) {
		for _, t := range tools {
			r.tools[t.Name] = t
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a runner with an empty allow-list.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{tools: make(map[string]Tool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name, command string, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = Tool{Name: name, Command: command, Args: args}
}

// Tools returns the allow-listed names in sorted order.
func (r *Runner) Tools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tools))
}

func (r *Runner) lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Exec runs a tool with the given variables and returns its parsed stdout:
// JSON objects and arrays are decoded, anything else is the trimmed text.
func (r *Runner) Exec(ctx context.Context, name string, vars map[string]any, payload any) (any, error) {
	tool, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("process tool not registered: %s", name)
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	cmd.Dir = r.baseDir

	env := cmd.Environ()
	for k, v := range tool.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range vars {
		env = append(env, EnvPrefix+strings.ToUpper(k)+"="+envValue(v))
	}
	if payload != nil {
		env = append(env, PayloadEnv+"="+envValue(payload))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("execution failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseOutput(stdout.String()), nil
}

func envValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

func parseOutput(out string) any {
	trimmed := strings.TrimSpace(out)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return v
		}
	}
	return trimmed
}

type execArgs struct {
	Tool string   `mapstructure:"tool"`
	Keys []string `mapstructure:"keys"`
	Into string   `mapstructure:"into"`
}

// Factory returns the registry factory of the exec action. Arguments: tool
// (required, must be allow-listed), keys (context keys exported to the
// process) and into (context key receiving the output). The output travels
// as the payload of the success branch; failures take the error branch.
func (r *Runner) Factory() func(args map[string]any) (*domain.Action, error) {
	return func(args map[string]any) (*domain.Action, error) {
		var a execArgs
		if err := mapstructure.Decode(args, &a); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if a.Tool == "" {
			return nil, fmt.Errorf("tool is required")
		}
		if _, ok := r.lookup(a.Tool); !ok {
			return nil, fmt.Errorf("tool %q is not allow-listed", a.Tool)
		}
		return &domain.Action{
			Name:    "exec",
			Outputs: []string{Success, Error},
			Fn: func(ctx context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
				vars := make(map[string]any, len(a.Keys))
				for _, k := range a.Keys {
					if v, ok := rc.Get(k); ok {
						vars[k] = v
					}
				}
				out, err := r.Exec(ctx, a.Tool, vars, payload)
				if err != nil {
					return rc.Paths().Take(Error, map[string]any{"error": err.Error()}), nil
				}
				if a.Into != "" {
					rc.Set(a.Into, out)
				}
				return rc.Paths().Take(Success, out), nil
			},
		}, nil
	}
}
