package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/pathflow/pkg/domain"
)

// Overlay contains the trace of one run to highlight on the graph.
type Overlay struct {
	Trace  []domain.TraceEntry
	Failed bool
}

// GenerateMermaid produces a Mermaid flowchart of a signal tree.
// It applies semantic styling:
// - Signal entry and end: ((Circle))
// - Branching action: {Rhombus}
// - Plain action: [[Subroutine]]
// - Declared but unwired output: dotted edge to a warning node
// Edges into a branch are labeled with the output name; the last items of a
// branch connect to whatever follows the branching action.
// It also applies overlay styles (Visited/Failed) if provided.
func GenerateMermaid(sig domain.Signal, overlay *Overlay) string {
	r := &renderer{ids: make(map[*domain.Step]string)}
	r.line("graph TD")

	start := sanitizeMermaidID("signal_" + sig.Name)
	r.line("    %s((\"%s\"))", start, escape(sig.Name))

	tails := r.sequence(sig.Sequence, []edge{{from: start}})

	end := sanitizeMermaidID("end_" + sig.Name)
	r.line("    %s((\"end\"))", end)
	r.connect(tails, end)

	if overlay != nil {
		r.overlay(sig.Sequence, overlay)
	}
	return r.sb.String()
}

type edge struct {
	from  string
	label string
}

type renderer struct {
	sb    strings.Builder
	ids   map[*domain.Step]string
	count int
}

func (r *renderer) line(format string, args ...any) {
	fmt.Fprintf(&r.sb, format, args...)
	r.sb.WriteByte('\n')
}

func (r *renderer) connect(preds []edge, to string) {
	for _, p := range preds {
		if p.label == "" {
			r.line("    %s --> %s", p.from, to)
		} else {
			r.line("    %s -- \"%s\" --> %s", p.from, escape(p.label), to)
		}
	}
}

// sequence draws items in order and returns the dangling edges leaving it.
// An empty sequence passes its incoming edges through unchanged.
func (r *renderer) sequence(seq domain.Sequence, preds []edge) []edge {
	for _, item := range seq.Items {
		switch it := item.(type) {
		case domain.Sequence:
			preds = r.sequence(it, preds)
		case *domain.Step:
			preds = r.step(it, preds)
		}
	}
	return preds
}

func (r *renderer) step(step *domain.Step, preds []edge) []edge {
	if step == nil || step.Action == nil {
		return preds
	}
	id := fmt.Sprintf("a%d_%s", r.count, sanitizeMermaidID(step.Action.Name))
	r.count++
	r.ids[step] = id

	name := escape(step.Action.Name)
	if len(step.Action.Outputs) > 0 {
		r.line("    %s{\"%s\"}", id, name)
	} else {
		r.line("    %s[[\"%s\"]]", id, name)
	}
	r.connect(preds, id)

	if len(step.Action.Outputs) == 0 {
		return []edge{{from: id}}
	}

	var tails []edge
	wired := 0
	for _, out := range step.Action.Outputs {
		branch, ok := step.Paths[out]
		if !ok {
			missing := id + "_" + sanitizeMermaidID(out) + "_unwired"
			r.line("    %s[/\"unwired: %s\"/]", missing, escape(out))
			r.line("    %s -. \"%s\" .-> %s", id, escape(out), missing)
			continue
		}
		wired++
		tails = append(tails, r.sequence(branch, []edge{{from: id, label: out}})...)
	}
	if wired == 0 {
		return []edge{{from: id}}
	}
	return tails
}

// overlay replays the trace over the tree to find which steps ran. Failed
// actions are not traced, so the first step past the trace is the failed one.
func (r *renderer) overlay(seq domain.Sequence, o *Overlay) {
	visited := make([]string, 0, len(o.Trace))
	var stopped string
	var walk func(seq domain.Sequence, i int) (int, bool)
	walk = func(seq domain.Sequence, i int) (int, bool) {
		for _, item := range seq.Items {
			switch it := item.(type) {
			case domain.Sequence:
				var ok bool
				if i, ok = walk(it, i); !ok {
					return i, false
				}
			case *domain.Step:
				if it == nil || it.Action == nil {
					return i, false
				}
				if i >= len(o.Trace) {
					stopped = r.ids[it]
					return i, false
				}
				if o.Trace[i].Action != it.Action.Name {
					return i, false
				}
				visited = append(visited, r.ids[it])
				entry := o.Trace[i]
				i++
				if entry.Output != "" {
					var ok bool
					if i, ok = walk(it.Paths[entry.Output], i); !ok {
						return i, false
					}
				}
			}
		}
		return i, true
	}
	walk(seq, 0)

	r.sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	r.line("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;")
	r.line("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;")
	for _, id := range visited {
		r.line("    class %s visited;", id)
	}
	switch {
	case !o.Failed:
	case stopped != "":
		r.line("    class %s failed;", stopped)
	case len(visited) > 0:
		r.line("    class %s failed;", visited[len(visited)-1])
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, id)
}
