package apikey

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/clipindex/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestResolve_PrefersOverrideOverEverythingElse(t *testing.T) {
	dir := t.TempDir()
	r := New("TestApp", dir, testLogger(t))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "openai-api-key.txt"), []byte("file-key-1234567890"), 0o644))
	t.Setenv("TEST_OPENAI_API_KEY", "env-key-1234567890")

	k, ok := r.Resolve("openai", "TEST_OPENAI_API_KEY", "override-key-1234567890")
	require.True(t, ok)
	require.Equal(t, "override-key-1234567890", k)
}

func TestResolve_FallsBackToKeyFileWhenNoOverrideOrSecureStore(t *testing.T) {
	dir := t.TempDir()
	r := New("TestApp", dir, testLogger(t))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openai-api-key.txt"), []byte("  file-key-1234567890\n"), 0o644))

	k, ok := r.Resolve("openai", "TEST_OPENAI_API_KEY_UNSET", "")
	require.True(t, ok)
	require.Equal(t, "file-key-1234567890", k)
}

func TestResolve_FallsBackToEnvVarWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	r := New("TestApp", dir, testLogger(t))
	t.Setenv("TEST_GOOGLE_API_KEY", "env-key-1234567890")

	k, ok := r.Resolve("google", "TEST_GOOGLE_API_KEY", "")
	require.True(t, ok)
	require.Equal(t, "env-key-1234567890", k)
}

func TestResolve_SecureStoreWinsOverFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	r := New("TestApp", dir, testLogger(t)).WithSecureStore(func(provider string) (string, bool) {
		if provider == "openai" {
			return "secure-store-key-1234567890", true
		}
		return "", false
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openai-api-key.txt"), []byte("file-key-1234567890"), 0o644))

	k, ok := r.Resolve("openai", "TEST_OPENAI_API_KEY_UNSET2", "")
	require.True(t, ok)
	require.Equal(t, "secure-store-key-1234567890", k)
}

func TestResolve_RejectsTooShortKeys(t *testing.T) {
	dir := t.TempDir()
	r := New("TestApp", dir, testLogger(t))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openai-api-key.txt"), []byte("short"), 0o644))
	t.Setenv("TEST_OPENAI_SHORT", "also")

	_, ok := r.Resolve("openai", "TEST_OPENAI_SHORT", "")
	require.False(t, ok)
}

func TestResolve_NoSourcesYieldsNotOK(t *testing.T) {
	dir := t.TempDir()
	r := New("TestApp", dir, testLogger(t))

	_, ok := r.Resolve("openai", "TEST_OPENAI_API_KEY_TOTALLY_UNSET", "")
	require.False(t, ok)
}
