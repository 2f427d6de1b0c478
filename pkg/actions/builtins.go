package actions

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/providers"
	"github.com/aretw0/pathflow/pkg/registry"
)

// Otherwise is the fallback output of Match.
const Otherwise = "otherwise"

// Outputs of Exists.
const (
	Yes = "yes"
	No  = "no"
)

// Outputs of the HTTP actions.
const (
	Success = "success"
	Error   = "error"
)

// Register adds every builtin to r.
func Register(r *registry.Registry) {
	r.Register("set", Set)
	r.Register("unset", Unset)
	r.Register("copy", Copy)
	r.Register("log", Log)
	r.Register("fail", Fail)
	r.Register("match", Match)
	r.Register("exists", Exists)
	r.Register("forward", Forward)
	r.Register("validate", Validate)
	r.Register("http_get", HTTPGet)
	r.Register("http_post", HTTPPost)
}

// NewRegistry returns a registry preloaded with the builtins.
func NewRegistry() *registry.Registry {
	r := registry.NewRegistry()
	Register(r)
	return r
}

type setArgs struct {
	Key         string `mapstructure:"key"`
	Value       any    `mapstructure:"value"`
	FromPayload bool   `mapstructure:"from_payload"`
}

// Set stores a literal value, or the incoming payload, under key.
func Set(args map[string]any) (*domain.Action, error) {
	var a setArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := required("key", a.Key); err != nil {
		return nil, err
	}
	return &domain.Action{
		Name: "set",
		Fn: func(_ context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
			if a.FromPayload {
				rc.Set(a.Key, payload)
			} else {
				rc.Set(a.Key, a.Value)
			}
			return payload, nil
		},
	}, nil
}

type unsetArgs struct {
	Key  string   `mapstructure:"key"`
	Keys []string `mapstructure:"keys"`
}

// Unset deletes one or more keys.
func Unset(args map[string]any) (*domain.Action, error) {
	var a unsetArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	keys := a.Keys
	if a.Key != "" {
		keys = append([]string{a.Key}, keys...)
	}
	if len(keys) == 0 {
		return nil, errors.New("key or keys is required")
	}
	return &domain.Action{
		Name: "unset",
		Fn: func(_ context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
			for _, k := range keys {
				rc.Delete(k)
			}
			return payload, nil
		},
	}, nil
}

type copyArgs struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// Copy duplicates a context value under another key. A missing source is an error.
func Copy(args map[string]any) (*domain.Action, error) {
	var a copyArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := errors.Join(required("from", a.From), required("to", a.To)); err != nil {
		return nil, err
	}
	return &domain.Action{
		Name: "copy",
		Fn: func(_ context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
			v, ok := rc.Get(a.From)
			if !ok {
				return nil, fmt.Errorf("copy: key %q not set", a.From)
			}
			rc.Set(a.To, v)
			return payload, nil
		},
	}, nil
}

type logArgs struct {
	Message string   `mapstructure:"message"`
	Level   string   `mapstructure:"level"`
	Keys    []string `mapstructure:"keys"`
}

// Log writes a message to the run logger, with the listed context keys as attributes.
func Log(args map[string]any) (*domain.Action, error) {
	var a logArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := required("message", a.Message); err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cmp.Or(a.Level, "info")))); err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	return &domain.Action{
		Name: "log",
		Fn: func(ctx context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
			attrs := make([]any, 0, 2*len(a.Keys))
			for _, k := range a.Keys {
				v, _ := rc.Get(k)
				attrs = append(attrs, k, v)
			}
			providers.LoggerFrom(rc).Log(ctx, level, a.Message, attrs...)
			return payload, nil
		},
	}, nil
}

type failArgs struct {
	Message string `mapstructure:"message"`
}

// Fail aborts the run with an error.
func Fail(args map[string]any) (*domain.Action, error) {
	var a failArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	msg := cmp.Or(a.Message, "failed")
	return &domain.Action{
		Name: "fail",
		Fn: func(context.Context, *domain.Context, domain.Declaration, any) (any, error) {
			return nil, errors.New(msg)
		},
	}, nil
}

type matchArgs struct {
	Key   string   `mapstructure:"key"`
	Cases []string `mapstructure:"cases"`
}

// Match branches on the string form of a context value (or the payload when
// key is empty). It declares one output per case plus Otherwise.
func Match(args map[string]any) (*domain.Action, error) {
	var a matchArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if len(a.Cases) == 0 {
		return nil, errors.New("cases is required")
	}
	if slices.Contains(a.Cases, Otherwise) {
		return nil, fmt.Errorf("case %q is reserved", Otherwise)
	}
	outputs := append(slices.Clone(a.Cases), Otherwise)
	return &domain.Action{
		Name:    "match",
		Outputs: outputs,
		Fn: func(_ context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
			v := payload
			if a.Key != "" {
				v, _ = rc.Get(a.Key)
			}
			s := fmt.Sprint(v)
			if v != nil && slices.Contains(a.Cases, s) {
				return rc.Paths().Take(s, payload), nil
			}
			return rc.Paths().Take(Otherwise, payload), nil
		},
	}, nil
}

type existsArgs struct {
	Key string `mapstructure:"key"`
}

// Exists branches on whether key is set.
func Exists(args map[string]any) (*domain.Action, error) {
	var a existsArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := required("key", a.Key); err != nil {
		return nil, err
	}
	return &domain.Action{
		Name:    "exists",
		Outputs: []string{Yes, No},
		Fn: func(_ context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
			if rc.Has(a.Key) {
				return rc.Paths().Take(Yes, payload), nil
			}
			return rc.Paths().Take(No, payload), nil
		},
	}, nil
}

type forwardArgs struct {
	Key string `mapstructure:"key"`
}

// Forward replaces the payload with a context value (nil when missing).
func Forward(args map[string]any) (*domain.Action, error) {
	var a forwardArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := required("key", a.Key); err != nil {
		return nil, err
	}
	return &domain.Action{
		Name: "forward",
		Fn: func(_ context.Context, rc *domain.Context, _ domain.Declaration, _ any) (any, error) {
			v, _ := rc.Get(a.Key)
			return v, nil
		},
	}, nil
}
