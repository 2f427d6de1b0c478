package actions

import (
	"context"
	"errors"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/providers"
)

type httpArgs struct {
	Path string `mapstructure:"path"`
	Into string `mapstructure:"into"`
}

// HTTPGet calls GET path through the HTTP provider's client. The decoded
// response is stored under into (when set) and travels as the payload of the
// success branch; failures take the error branch with the error message.
func HTTPGet(args map[string]any) (*domain.Action, error) {
	return httpAction("http_get", args, func(ctx context.Context, c *providers.HTTPClient, path string, payload any, out *any) error {
		return c.GetJSON(ctx, path, out)
	})
}

// HTTPPost is HTTPGet with the incoming payload sent as the JSON body.
func HTTPPost(args map[string]any) (*domain.Action, error) {
	return httpAction("http_post", args, func(ctx context.Context, c *providers.HTTPClient, path string, payload any, out *any) error {
		return c.PostJSON(ctx, path, payload, out)
	})
}

type httpCall func(ctx context.Context, c *providers.HTTPClient, path string, payload any, out *any) error

func httpAction(name string, args map[string]any, call httpCall) (*domain.Action, error) {
	var a httpArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if err := required("path", a.Path); err != nil {
		return nil, err
	}
	return &domain.Action{
		Name:    name,
		Outputs: []string{Success, Error},
		Fn: func(ctx context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
			client, ok := providers.HTTPFrom(rc)
			if !ok {
				return nil, errors.New("no http client in context; configure the http provider")
			}
			var out any
			if err := call(ctx, client, a.Path, payload, &out); err != nil {
				return rc.Paths().Take(Error, map[string]any{"error": err.Error()}), nil
			}
			if a.Into != "" {
				rc.Set(a.Into, out)
			}
			return rc.Paths().Take(Success, out), nil
		},
	}, nil
}
