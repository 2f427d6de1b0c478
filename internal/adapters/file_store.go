package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/pathflow/pkg/domain"
)

// FileRunStore implements ports.RunStore using the local filesystem.
// It stores each run result as a JSON file in a configured directory.
type FileRunStore struct {
	BasePath string
}

// NewFileRunStore creates a new FileRunStore with the given base path.
// If basePath is empty, it defaults to ".pathflow/runs".
func NewFileRunStore(basePath string) *FileRunStore {
	if basePath == "" {
		basePath = filepath.Join(".pathflow", "runs")
	}
	return &FileRunStore{BasePath: basePath}
}

func (f *FileRunStore) path(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid runID %q", runID)
	}
	return filepath.Join(f.BasePath, runID+".json"), nil
}

// Save persists the result to a JSON file.
func (f *FileRunStore) Save(ctx context.Context, result *domain.Result) error {
	filePath, err := f.path(result.RunID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure run directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial document.
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("failed to commit run file: %w", err)
	}
	return nil
}

// Load retrieves the result from its JSON file.
func (f *FileRunStore) Load(ctx context.Context, runID string) (*domain.Result, error) {
	filePath, err := f.path(runID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var result domain.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run result: %w", err)
	}
	return &result, nil
}

// Delete removes the run file.
func (f *FileRunStore) Delete(ctx context.Context, runID string) error {
	filePath, err := f.path(runID)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete run file: %w", err)
	}
	return nil
}

// List returns all stored run IDs in sorted order.
func (f *FileRunStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var runs []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			runs = append(runs, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	slices.Sort(runs)
	return runs, nil
}
