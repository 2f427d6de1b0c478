package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
)

// Mask replaces values of sensitive keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks context and payload values
// whose keys match any of the patterns before a result is persisted.
func NewPIIMiddleware(patternStrings []string) RunMiddleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.RunStore) ports.RunStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, result *domain.Result) error {
	// The caller keeps using its result, so mask a deep copy.
	cloned := *result
	if result.Context != nil {
		masked := domain.NewContext(nil)
		result.Context.Range(func(k string, v any) bool {
			if m.matches(k) {
				masked.Set(k, Mask)
			} else {
				masked.Set(k, m.maskValue(v))
			}
			return true
		})
		cloned.Context = masked
	}
	cloned.Payload = m.maskValue(result.Payload)

	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.Result, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) maskValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, sub := range t {
			if m.matches(k) {
				out[k] = Mask
			} else {
				out[k] = m.maskValue(sub)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, sub := range t {
			out[i] = m.maskValue(sub)
		}
		return out
	default:
		return v
	}
}
