package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/pathflow/pkg/domain"
)

// Node is the serialisable form of one step. Nested sequence groups are
// flattened since they run inline.
type Node struct {
	Action  string            `json:"action"`
	Outputs []string          `json:"outputs,omitempty"`
	Paths   map[string][]Node `json:"paths,omitempty"`
}

// View is the serialisable form of a signal tree.
type View struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Actions     int    `json:"actions"`
	Sequence    []Node `json:"sequence"`
}

// Describe converts a signal into its View.
func Describe(sig domain.Signal) View {
	count := 0
	sig.Sequence.Walk(func(*domain.Step) { count++ })
	return View{
		Name:        sig.Name,
		Description: sig.Description,
		Actions:     count,
		Sequence:    nodes(sig.Sequence),
	}
}

func nodes(seq domain.Sequence) []Node {
	out := []Node{}
	for _, item := range seq.Items {
		switch it := item.(type) {
		case domain.Sequence:
			out = append(out, nodes(it)...)
		case *domain.Step:
			if it == nil || it.Action == nil {
				continue
			}
			n := Node{Action: it.Action.Name, Outputs: slices.Clone(it.Action.Outputs)}
			if len(it.Paths) > 0 {
				n.Paths = make(map[string][]Node, len(it.Paths))
				for label, branch := range it.Paths {
					n.Paths[label] = nodes(branch)
				}
			}
			out = append(out, n)
		}
	}
	return out
}

// Markdown renders a signal tree as a nested list, for terminal display.
func Markdown(sig domain.Signal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", sig.Name)
	if sig.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", sig.Description)
	}
	writeList(&sb, Describe(sig).Sequence, 0)
	return sb.String()
}

func writeList(sb *strings.Builder, ns []Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range ns {
		fmt.Fprintf(sb, "%s- **%s**", indent, n.Action)
		if len(n.Outputs) > 0 {
			fmt.Fprintf(sb, " `%s`", strings.Join(n.Outputs, " | "))
		}
		sb.WriteByte('\n')
		for _, out := range n.Outputs {
			branch, ok := n.Paths[out]
			switch {
			case !ok:
				fmt.Fprintf(sb, "%s  - _%s_: unwired\n", indent, out)
			case len(branch) == 0:
				fmt.Fprintf(sb, "%s  - _%s_: continue\n", indent, out)
			default:
				fmt.Fprintf(sb, "%s  - _%s_:\n", indent, out)
				writeList(sb, branch, depth+2)
			}
		}
	}
}
