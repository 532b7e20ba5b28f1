// Package tokenfile persists the portal token between runs.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/al-bashkir/postnl-go/internal/auth"
)

// Load reads a token written by Save. A missing file is not an error: it
// returns nil so the caller logs in from scratch.
func Load(filePath string) (*auth.Token, error) {
	if filePath == "" {
		return nil, fmt.Errorf("token file path is empty")
	}

	data, err := os.ReadFile(filePath) // #nosec G304 -- operator supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no stored token", "path", filePath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok auth.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if tok.AccessToken == "" || tok.IDToken == "" {
		return nil, fmt.Errorf("token file %s is incomplete", filePath)
	}

	slog.Debug("loaded stored token", "path", filePath, "expires_at", tok.ExpiresAt)
	return &tok, nil
}

// Save writes tok to filePath with 0600 permissions. The file is written to a
// temporary sibling first and renamed into place, so a concurrent Load never
// sees a partial token.
func Save(filePath string, tok *auth.Token) error {
	if filePath == "" {
		return fmt.Errorf("token file path is empty")
	}
	if tok == nil {
		return fmt.Errorf("token is nil")
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	slog.Debug("stored token", "path", filePath, "expires_at", tok.ExpiresAt)
	return nil
}

// Remove deletes the stored token. Removing a missing file succeeds.
func Remove(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("token file path is empty")
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
