// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials from a directory of plain-text files.
// Each file holds one secret: the file name is the key and the trimmed
// contents are the value. The model API key lives in a file named api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is the secrets directory looked up relative to the working
// directory.
const DefaultDir = ".secrets"

// APIKey is the file name holding the model API key.
const APIKey = "api-key"

// Load reads all files in dir and returns a map of file name to trimmed
// contents. A missing directory yields an empty map. Dotfiles, empty files
// and subdirectories are ignored; unreadable files are logged and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("secrets.read_error", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// ResolveAPIKey returns configured when it is set, otherwise the api-key
// secret from dir. The second result names where the key came from, or is
// empty when no key was found.
func ResolveAPIKey(configured, dir string, logger *slog.Logger) (string, string, error) {
	if k := strings.TrimSpace(configured); k != "" {
		return k, "config", nil
	}
	s, err := Load(dir, logger)
	if err != nil {
		return "", "", err
	}
	if k, ok := s[APIKey]; ok {
		return k, filepath.Join(dir, APIKey), nil
	}
	return "", "", nil
}
