package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tool is an allow-listed command the exec action may run.
type Tool struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Env         map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ToolsFile is the layout of tools.yaml (or tools.json).
type ToolsFile struct {
	Tools []Tool `yaml:"tools" json:"tools"`
}

// LoadTools reads a tools file. An empty path or a missing file yields an
// empty allow-list.
func LoadTools(path string) (map[string]Tool, error) {
	if path == "" {
		return map[string]Tool{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Tool{}, nil
		}
		return nil, fmt.Errorf("failed to read tools file: %w", err)
	}

	var f ToolsFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	tools := make(map[string]Tool, len(f.Tools))
	for _, t := range f.Tools {
		if t.Name == "" {
			continue
		}
		if t.Command == "" {
			return nil, fmt.Errorf("tool %q: command is required", t.Name)
		}
		tools[t.Name] = t
	}
	return tools, nil
}
