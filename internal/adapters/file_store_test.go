package adapters_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/pathflow/internal/adapters"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
	contract "github.com/aretw0/pathflow/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure FileRunStore implements RunStore
var _ ports.RunStore = (*adapters.FileRunStore)(nil)

func TestFileRunStore_Contract(t *testing.T) {
	contract.RunStoreContract(t, adapters.NewFileRunStore(t.TempDir()))
}

func TestFileRunStore_ListMissingDir(t *testing.T) {
	store := adapters.NewFileRunStore(filepath.Join(t.TempDir(), "absent"))
	runs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestFileRunStore_RejectsTraversal(t *testing.T) {
	store := adapters.NewFileRunStore(t.TempDir())
	ctx := context.Background()

	err := store.Save(ctx, &domain.Result{RunID: "../escape"})
	assert.Error(t, err)

	_, err = store.Load(ctx, "")
	assert.Error(t, err)
}

func TestFileRunStore_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store := adapters.NewFileRunStore(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, store.Save(ctx, &domain.Result{RunID: "r1", Context: domain.NewContext(nil)}))

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, runs)
}
