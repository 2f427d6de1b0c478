package runtime

import (
	"slices"

	"github.com/aretw0/pathflow/pkg/domain"
)

// Warning is a non-fatal finding from ValidateSignal.
type Warning struct {
	Action string
	Output string
}

// ValidateSignal checks that the tree is consistent with the action
// declarations. Branch labels that are not declared outputs are always errors;
// declared outputs without a branch are warnings unless strict is set, in
// which case they are errors too.
func ValidateSignal(sig domain.Signal, strict bool) ([]Warning, error) {
	var errs domain.ValidationErrors
	var warnings []Warning

	fail := func(action, problem string) {
		errs = append(errs, &domain.ValidationError{Signal: sig.Name, Action: action, Problem: problem})
	}

	if sig.Name == "" {
		fail("", "signal name is empty")
	}
	if sig.Sequence.Len() == 0 {
		fail("", "signal has no actions")
	}

	var check func(seq domain.Sequence)
	check = func(seq domain.Sequence) {
		for _, item := range seq.Items {
			switch it := item.(type) {
			case domain.Sequence:
				check(it)
			case *domain.Step:
				if it == nil || it.Action == nil {
					fail("", "step without action")
					continue
				}
				checkStep(it, strict, fail, &warnings)
				for _, label := range sortedLabels(it.Paths) {
					check(it.Paths[label])
				}
			default:
				fail("", "unsupported sequence item")
			}
		}
	}
	check(sig.Sequence)

	if len(errs) > 0 {
		return warnings, errs
	}
	return warnings, nil
}

func checkStep(step *domain.Step, strict bool, fail func(action, problem string), warnings *[]Warning) {
	a := step.Action
	if a.Name == "" {
		fail("", "action name is empty")
	}
	if a.Fn == nil {
		fail(a.Name, "action has no function")
	}

	seen := make(map[string]bool, len(a.Outputs))
	for _, out := range a.Outputs {
		if out == "" {
			fail(a.Name, "empty output name")
			continue
		}
		if seen[out] {
			fail(a.Name, "duplicate output "+quote(out))
		}
		seen[out] = true
	}

	for _, label := range sortedLabels(step.Paths) {
		if !seen[label] {
			fail(a.Name, "branch "+quote(label)+" is not a declared output")
		}
	}

	for _, out := range a.Outputs {
		if _, wired := step.Paths[out]; wired || out == "" {
			continue
		}
		if strict {
			fail(a.Name, "output "+quote(out)+" has no branch")
			continue
		}
		*warnings = append(*warnings, Warning{Action: a.Name, Output: out})
	}
}

func sortedLabels(paths map[string]domain.Sequence) []string {
	labels := make([]string, 0, len(paths))
	for k := range paths {
		labels = append(labels, k)
	}
	slices.Sort(labels)
	return labels
}

func quote(s string) string {
	return `"` + s + `"`
}
