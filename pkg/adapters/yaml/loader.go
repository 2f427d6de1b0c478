package yaml

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/pathflow/internal/dto"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/registry"
	"github.com/mitchellh/mapstructure"
	goyaml "gopkg.in/yaml.v3"
)

// Extensions lists the file extensions picked up from directories.
var Extensions = []string{".yaml", ".yml", ".json"}

// Loader implements ports.SignalLoader over signal definition files.
// Paths may be files or directories; directories are walked recursively.
type Loader struct {
	reg   *registry.Registry
	paths []string
}

// NewLoader creates a loader resolving action names through reg.
func NewLoader(reg *registry.Registry, paths ...string) *Loader {
	return &Loader{reg: reg, paths: paths}
}

// LoadSignals reads every configured file and returns the signals sorted by name.
// A signal name defined twice across files is an error.
func (l *Loader) LoadSignals() ([]domain.Signal, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}

	defs := make(map[string]dto.SignalDef)
	origin := make(map[string]string)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		doc, err := decodeFile(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		for name, def := range doc.Signals {
			if prev, dup := origin[name]; dup {
				return nil, fmt.Errorf("signal %q defined in both %s and %s", name, prev, f)
			}
			origin[name] = f
			defs[name] = def
		}
	}
	return build(l.reg, defs)
}

func (l *Loader) files() ([]string, error) {
	var files []string
	for _, p := range l.paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && slices.Contains(Extensions, strings.ToLower(filepath.Ext(path))) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	slices.Sort(files)
	return files, nil
}

// Parse decodes a single YAML (or JSON, which is valid YAML) document.
func Parse(reg *registry.Registry, data []byte) ([]domain.Signal, error) {
	doc, err := decodeFile(data)
	if err != nil {
		return nil, err
	}
	return build(reg, doc.Signals)
}

// decodeFile reads YAML and JSON alike. yaml.v3 rejects repeated mapping
// keys, so a duplicate branch label fails instead of replacing the first.
func decodeFile(data []byte) (*dto.SignalFile, error) {
	var raw map[string]any
	if err := goyaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var doc dto.SignalFile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &doc,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid signal document: %w", err)
	}
	return &doc, nil
}

// build turns definitions into signals, resolving "use" references.
func build(reg *registry.Registry, defs map[string]dto.SignalDef) ([]domain.Signal, error) {
	b := &builder{reg: reg, defs: defs, resolving: make(map[string]bool)}

	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	slices.Sort(names)

	signals := make([]domain.Signal, 0, len(names))
	for _, name := range names {
		seq, err := b.signal(name)
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", name, err)
		}
		signals = append(signals, domain.Signal{
			Name:        name,
			Description: defs[name].Description,
			Sequence:    seq,
		})
	}
	return signals, nil
}

type builder struct {
	reg       *registry.Registry
	defs      map[string]dto.SignalDef
	resolving map[string]bool
}

func (b *builder) signal(name string) (domain.Sequence, error) {
	def, ok := b.defs[name]
	if !ok {
		return domain.Sequence{}, fmt.Errorf("%w: %s", domain.ErrUnknownSignal, name)
	}
	if b.resolving[name] {
		return domain.Sequence{}, fmt.Errorf("signal %q uses itself", name)
	}
	b.resolving[name] = true
	defer delete(b.resolving, name)
	return b.sequence(def.Sequence)
}

func (b *builder) sequence(items []dto.ItemDef) (domain.Sequence, error) {
	seq := domain.Sequence{Items: make([]domain.Item, 0, len(items))}
	for i, it := range items {
		item, err := b.item(it)
		if err != nil {
			return domain.Sequence{}, fmt.Errorf("item %d: %w", i, err)
		}
		seq.Items = append(seq.Items, item)
	}
	return seq, nil
}

func (b *builder) item(it dto.ItemDef) (domain.Item, error) {
	set := 0
	for _, present := range []bool{it.Do != "", it.Sequence != nil, it.Use != ""} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of do, sequence or use is required")
	}

	switch {
	case it.Use != "":
		// Each use builds fresh actions so the inlined tree is independent.
		return b.signal(it.Use)
	case it.Sequence != nil:
		if it.Paths != nil || it.Args != nil || it.Name != "" {
			return nil, fmt.Errorf("a sequence group takes no name, args or paths")
		}
		return b.sequence(it.Sequence)
	}

	action, err := b.reg.Build(it.Do, it.Name, it.Args)
	if err != nil {
		return nil, err
	}
	step := &domain.Step{Action: action}
	if len(it.Paths) > 0 {
		step.Paths = make(map[string]domain.Sequence, len(it.Paths))
		for label, branch := range it.Paths {
			seq, err := b.sequence(branch)
			if err != nil {
				return nil, fmt.Errorf("%s -> %s: %w", action.Name, label, err)
			}
			step.Paths[label] = seq
		}
	}
	return step, nil
}
