// Package keystore persists the client's provider keys between runs.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"spai/internal/assistant"
)

// Name is the file name (without extension) the keys are saved under.
const Name = "sp-ai-api-keys"

// DefaultPath is <user config dir>/spai/sp-ai-api-keys.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, "spai", Name+".json"), nil
}

// Load reads keys from path. A missing file yields empty keys.
func Load(path string) (assistant.Keys, error) {
	var keys assistant.Keys

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return keys, nil
	}
	if err != nil {
		return keys, fmt.Errorf("read keys: %w", err)
	}
	if err := json.Unmarshal(data, &keys); err != nil {
		return keys, fmt.Errorf("parse keys %s: %w", path, err)
	}
	return keys, nil
}

// Save writes keys with owner-only permissions. Nothing is written when
// all keys are empty.
func Save(path string, keys assistant.Keys) error {
	if keys == (assistant.Keys{}) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write keys: %w", err)
	}
	return os.Rename(tmp, path)
}
