package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile writes content to a file in the given directory.
// It creates parent directories as needed and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ReadFile reads a file and returns its contents.
// It fails the test if the file cannot be read.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// FileExists checks if a file exists.
func FileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

// ProjectDir makes a fresh working directory for the rest of the test and
// isolates it from the user's global config. A non-empty configYAML is
// written to .botctl/config.yaml.
func ProjectDir(t *testing.T, configYAML string) string {
	t.Helper()
	GlobalConfig(t, "")

	dir := t.TempDir()
	if configYAML != "" {
		WriteFile(t, dir, filepath.Join(".botctl", "config.yaml"), configYAML)
	}
	t.Chdir(dir)
	return dir
}

// GlobalConfig points XDG_CONFIG_HOME at a temporary directory and returns
// the global config path inside it. A non-empty configYAML is written there.
func GlobalConfig(t *testing.T, configYAML string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	path := filepath.Join(home, "botctl", "config.yaml")
	if configYAML != "" {
		WriteFile(t, home, filepath.Join("botctl", "config.yaml"), configYAML)
	}
	return path
}

// Eventually polls cond every 5ms until it holds or timeout passes.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
