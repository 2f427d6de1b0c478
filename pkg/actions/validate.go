package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/schema"
)

// Outputs of Validate.
const (
	Valid   = "valid"
	Invalid = "invalid"
)

type validateArgs struct {
	Key    string            `mapstructure:"key"`
	Schema map[string]string `mapstructure:"schema"`
}

// Validate checks an object (the context value under key, or the payload)
// against a schema of field types. The invalid branch receives
// {"errors": [...]} with one message per failing field.
func Validate(args map[string]any) (*domain.Action, error) {
	var a validateArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if len(a.Schema) == 0 {
		return nil, errors.New("schema is required")
	}
	s, err := schema.ParseTypeMap(a.Schema)
	if err != nil {
		return nil, err
	}
	return &domain.Action{
		Name:    "validate",
		Outputs: []string{Valid, Invalid},
		Fn: func(_ context.Context, rc *domain.Context, _ domain.Declaration, payload any) (any, error) {
			v := payload
			if a.Key != "" {
				v, _ = rc.Get(a.Key)
			}
			obj, ok := v.(map[string]any)
			if !ok {
				return rc.Paths().Take(Invalid, map[string]any{
					"errors": []string{fmt.Sprintf("expected object, got %T", v)},
				}), nil
			}
			if err := schema.Validate(s, obj); err != nil {
				var msgs []string
				for _, fe := range schema.Fields(err) {
					msgs = append(msgs, fe.Error())
				}
				return rc.Paths().Take(Invalid, map[string]any{"errors": msgs}), nil
			}
			return rc.Paths().Take(Valid, payload), nil
		},
	}, nil
}
