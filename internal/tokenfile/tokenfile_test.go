package tokenfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/al-bashkir/postnl-go/internal/auth"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "token.json")
	tok := &auth.Token{
		AccessToken: "access",
		IDToken:     "id",
		ExpiresAt:   time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := Save(path, tok); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("token file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.AccessToken != tok.AccessToken || got.IDToken != tok.IDToken || !got.ExpiresAt.Equal(tok.ExpiresAt) {
		t.Errorf("Load() = %+v, want %+v", got, tok)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}
}

func TestLoadMissing(t *testing.T) {
	tok, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load of a missing file failed: %v", err)
	}
	if tok != nil {
		t.Errorf("expected nil token, got %+v", tok)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name            string
		content         string
		wantErrContains string
	}{
		{name: "not json", content: "garbage", wantErrContains: "failed to parse"},
		{name: "incomplete", content: `{"access":"a"}`, wantErrContains: "incomplete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErrContains) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErrContains)
			}
		})
	}
}

func TestEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("Load with empty path should fail")
	}
	if err := Save("", &auth.Token{}); err == nil {
		t.Error("Save with empty path should fail")
	}
	if err := Remove(""); err == nil {
		t.Error("Remove with empty path should fail")
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := Save(path, &auth.Token{AccessToken: "a", IDToken: "i"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("token file still exists: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Errorf("removing a missing file failed: %v", err)
	}
}
