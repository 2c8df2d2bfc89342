// Package testing holds fixtures shared by package tests.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"beatrice-server-go/internal/platform/config"
	"beatrice-server-go/internal/platform/logging"
)

// SetupTestConfig returns defaults rooted in a temp dir with no static site
// and an empty preference set.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.Log.File = "test.log"
	cfg.Database.Path = filepath.Join(dir, "beatrice.db")
	cfg.Web.StaticDir = ""
	cfg.Preferences = config.PreferencesConfig{}
	return cfg
}

// SetupTestLogger writes to a temp dir and closes on cleanup.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.New(logging.Config{
		Level:    "DEBUG",
		Dir:      filepath.Join(t.TempDir(), "logs"),
		Filename: "test.log",
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// WriteConfigFile stores body as config.yaml in a temp dir and returns its path.
func WriteConfigFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
