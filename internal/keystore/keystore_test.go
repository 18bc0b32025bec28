package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spai/internal/assistant"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", Name+".json")
	keys := assistant.Keys{OpenAI: "sk-abc", SerpAPI: "serp"}

	require.NoError(t, Save(path, keys))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, keys, got)
}

func TestLoadMissing(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, assistant.Keys{}, got)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveEmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, Save(path, assistant.Keys{}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
