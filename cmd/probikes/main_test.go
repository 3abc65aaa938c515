package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"probikes/internal/config"
)

// isolate points storage at a temp directory and returns the flags that
// skip any local .env file.
func isolate(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("PROBIKES_STORAGE_DRIVER", "blob")
	t.Setenv("PROBIKES_BLOB_DRIVER", "fs")
	t.Setenv("PROBIKES_BLOB_FS_ROOT", dir)
	t.Setenv("PROBIKES_LOG_LEVEL", "error")
	t.Setenv("PROBIKES_REDIS_ADDR", "")
	return []string{"-env", filepath.Join(dir, "none.env")}
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func TestExportImportRoundTrip(t *testing.T) {
	flags := isolate(t)
	target := filepath.Join(t.TempDir(), "backup.json")

	out, err := runCmd(t, append(flags, "export", target)...)
	require.NoError(t, err)
	assert.Contains(t, out, "stored as backups/")

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "clients")
	assert.Contains(t, doc, "services")

	out, err = runCmd(t, append(flags, "import", target)...)
	require.NoError(t, err)
	assert.Contains(t, out, "imported")

	out, err = runCmd(t, append(flags, "export", "-")...)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
}

func TestImportRejectsInvalidBackup(t *testing.T) {
	flags := isolate(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"clients":[]}`), 0o600))
	_, err := runCmd(t, append(flags, "import", bad)...)
	assert.ErrorContains(t, err, "invalid backup")

	_, err = runCmd(t, append(flags, "import", filepath.Join(t.TempDir(), "missing.json"))...)
	assert.Error(t, err)
}

func TestMigrateReportsDocument(t *testing.T) {
	flags := isolate(t)
	out, err := runCmd(t, append(flags, "migrate")...)
	require.NoError(t, err)
	assert.Contains(t, out, "3 clients")
}

func TestTokenCommand(t *testing.T) {
	flags := isolate(t)
	t.Setenv("PROBIKES_JWT_SECRET", "s3cret")
	out, err := runCmd(t, append(flags, "token", "mostrador")...)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(string(bytes.TrimSpace([]byte(out))), claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "mostrador", claims.Subject)
}

func TestRunArgumentErrors(t *testing.T) {
	flags := isolate(t)
	for _, args := range [][]string{{"export"}, {"import"}, {"token"}, {"frobnicate"}} {
		_, err := runCmd(t, append(flags, args...)...)
		assert.Error(t, err, args)
	}
	_, err := runCmd(t, append(flags, "token", "x")...)
	assert.ErrorContains(t, err, "jwt secret is empty")

	t.Setenv("PROBIKES_STORAGE_DRIVER", "etcd")
	_, err = runCmd(t, append(flags, "migrate")...)
	assert.ErrorContains(t, err, "storage.driver")
}
