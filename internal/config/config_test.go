package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionflow/internal/blob"
	"sessionflow/internal/core"
)

// isolate runs the test from an empty directory with no inherited settings.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for name := range envKeys {
		if v, ok := os.LookupEnv(name); ok {
			require.NoError(t, os.Unsetenv(name))
			t.Cleanup(func() { _ = os.Setenv(name, v) })
		}
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.SafeMode)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "./sessionflow.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "fs", cfg.Blob.Driver)
	assert.Equal(t, blob.DefaultFSRoot, cfg.Blob.FSRoot)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Empty(t, cfg.Custom.Database.Prefix)
}

func TestLoadDataJointFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "dj_local_conf.json"), `{
  "database.host": "db.example.org",
  "database.user": "root",
  "database.password": "simple",
  "database.port": 3307,
  "loglevel": "debug",
  "safemode": false,
  "custom": {
    "database.prefix": "neuro_",
    "root_data_dir": ["/data/raw", "~/more"]
  },
  "storage": {"driver": "MySQL"}
}`)
	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "db.example.org", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.SafeMode)
	assert.Equal(t, "neuro_", cfg.Custom.Database.Prefix)
	assert.Equal(t, []string{"/data/raw", "~/more"}, cfg.Custom.RootDataDir)

	st := cfg.StorageOptions()
	assert.Equal(t, core.StorageMySQL, st.Driver)
	assert.Equal(t, "db.example.org:3307", st.MySQL.Addr())
	assert.Equal(t, "sessionflow", st.MySQL.Database)
	assert.Equal(t, "neuro_", st.Prefix)
	assert.False(t, st.SafeMode)
}

func TestEnvironmentOverridesFileAndDotenv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "dj_local_conf.json"), `{"custom": {"database.prefix": "file_"}}`)
	writeFile(t, filepath.Join(dir, ".env"), "DJ_HOST=from-dotenv\nSESSIONFLOW_BLOB_DRIVER=memory\n")
	t.Setenv("DATABASE_PREFIX", "env_")
	t.Setenv("SESSIONFLOW_ROOT_DATA_DIR", strings.Join([]string{"/a", "/b"}, string(os.PathListSeparator)))
	t.Setenv("SESSIONFLOW_STORAGE_DRIVER", "memory")
	t.Cleanup(func() {
		_ = os.Unsetenv("DJ_HOST")
		_ = os.Unsetenv("SESSIONFLOW_BLOB_DRIVER")
	})

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "env_", cfg.Custom.Database.Prefix)
	assert.Equal(t, "from-dotenv", cfg.Database.Host)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Custom.RootDataDir)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, blob.DriverMemory, cfg.BlobOptions().Driver)
}

func TestBlankEnvironmentKeepsFileValues(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "dj_local_conf.json"), `{
  "database.host": "db.example.org",
  "database.user": "root",
  "database.password": "simple",
  "custom": {"database.prefix": "file_"}
}`)
	t.Setenv("DJ_HOST", "")
	t.Setenv("DJ_USER", " ")
	t.Setenv("DJ_PASS", "")
	t.Setenv("DATABASE_PREFIX", "")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "db.example.org", cfg.Database.Host)
	assert.Equal(t, "root", cfg.Database.User)
	assert.Equal(t, "simple", cfg.Database.Password)
	assert.Equal(t, "file_", cfg.Custom.Database.Prefix)

	key, v := envValue("DJ_HOST", "")
	assert.Empty(t, key)
	assert.Nil(t, v)
	key, v = envValue("DJ_HOST", "db2")
	assert.Equal(t, "database.host", key)
	assert.Equal(t, "db2", v)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown storage", map[string]string{"SESSIONFLOW_STORAGE_DRIVER": "oracle"}, "Driver"},
		{"mysql needs host", map[string]string{"SESSIONFLOW_STORAGE_DRIVER": "mysql"}, "required_for_mysql"},
		{"postgres needs dsn", map[string]string{"SESSIONFLOW_STORAGE_DRIVER": "postgres"}, "required_for_postgres"},
		{"s3 needs bucket", map[string]string{"SESSIONFLOW_BLOB_DRIVER": "s3"}, "required_for_s3"},
		{"port range", map[string]string{"DJ_PORT": "70000"}, "Port"},
		{"log level", map[string]string{"SESSIONFLOW_LOGLEVEL": "chatty"}, "LogLevel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadReportsBrokenFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.json")
	writeFile(t, path, "{not json")
	_, err := Load(Options{ConfigFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom.json")
}

func TestLoadExpandsHome(t *testing.T) {
	isolate(t)
	t.Setenv("SESSIONFLOW_SQLITE_PATH", "~/flow.db")
	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(cfg.Storage.SQLitePath, "~"))
	assert.True(t, strings.HasSuffix(cfg.Storage.SQLitePath, "flow.db"))
}
