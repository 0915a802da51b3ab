package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LEDGER_TEST_VALUE=from-dotenv\n"), 0600))
	t.Setenv("LEDGER_TEST_VALUE", "")
	os.Unsetenv("LEDGER_TEST_VALUE")

	require.NoError(t, LoadEnvFile(envFile))
	assert.Equal(t, "from-dotenv", os.Getenv("LEDGER_TEST_VALUE"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger("debug", &buf)
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), "component=cli")

	_, err = SetupLogger("chatty", &buf)
	assert.Error(t, err)
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("LEDGER_DB_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("IDENTITY_PROVIDER", "local")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("BILL_DUE_WINDOW", "")

	cfg, err := LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.IdentityProvider)

	t.Setenv("IDENTITY_PROVIDER", "ldap")
	_, err = LoadAndValidateConfig()
	assert.ErrorContains(t, err, "configuration validation failed")
}
