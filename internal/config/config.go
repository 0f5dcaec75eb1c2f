// Package config loads runtime settings. Sources are applied in order, later
// ones winning: built-in defaults, the .env file, the dj_local_conf.json file
// and finally the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	homedir "github.com/mitchellh/go-homedir"

	"sessionflow/internal/blob"
	"sessionflow/internal/core"
	"sessionflow/internal/infra/persistence/mysql"
)

// Default file locations.
const (
	DefaultConfigFile = "./dj_local_conf.json"
	DefaultEnvFile    = ".env"
)

// Log levels accepted in the loglevel setting.
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Config is the root configuration object.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Custom   CustomConfig   `koanf:"custom"`
	LogLevel string         `koanf:"loglevel" validate:"oneof=DEBUG INFO WARNING ERROR"`
	SafeMode bool           `koanf:"safemode"`
	Storage  StorageConfig  `koanf:"storage"`
	Blob     BlobConfig     `koanf:"blob"`
}

// DatabaseConfig holds the MySQL server settings, named the way DataJoint
// names them.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
}

// CustomConfig holds workflow specific settings.
type CustomConfig struct {
	Database struct {
		Prefix string `koanf:"prefix"`
	} `koanf:"database"`
	RootDataDir []string `koanf:"root_data_dir"`
}

// StorageConfig selects the table backend.
type StorageConfig struct {
	Driver      string `koanf:"driver" validate:"oneof=memory sqlite postgres mysql"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn"`
}

// BlobConfig selects where source files are read from.
type BlobConfig struct {
	Driver string       `koanf:"driver" validate:"oneof=fs s3 memory"`
	FSRoot string       `koanf:"fs_root"`
	S3     BlobS3Config `koanf:"s3"`
}

// BlobS3Config configures the s3 driver. Credentials come from the AWS
// default chain unless an access key is given.
type BlobS3Config struct {
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint" validate:"omitempty,url"`
	PathStyle       bool   `koanf:"path_style"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
}

var defaults = map[string]any{
	"database.host":       "",
	"database.port":       mysql.DefaultPort,
	"database.name":       "sessionflow",
	"loglevel":            LevelInfo,
	"safemode":            true,
	"storage.driver":      string(core.StorageSQLite),
	"storage.sqlite_path": "./sessionflow.db",
	"blob.driver":         string(blob.DriverFilesystem),
	"blob.fs_root":        blob.DefaultFSRoot,
	"blob.s3.region":      "us-east-1",
}

// envKeys maps environment variables onto configuration keys.
var envKeys = map[string]string{
	"DJ_HOST":                        "database.host",
	"DJ_PORT":                        "database.port",
	"DJ_USER":                        "database.user",
	"DJ_PASS":                        "database.password",
	"DATABASE_PREFIX":                "custom.database.prefix",
	"SESSIONFLOW_DATABASE_NAME":      "database.name",
	"SESSIONFLOW_LOGLEVEL":           "loglevel",
	"SESSIONFLOW_SAFEMODE":           "safemode",
	"SESSIONFLOW_STORAGE_DRIVER":     "storage.driver",
	"SESSIONFLOW_SQLITE_PATH":        "storage.sqlite_path",
	"SESSIONFLOW_POSTGRES_DSN":       "storage.postgres_dsn",
	"SESSIONFLOW_BLOB_DRIVER":        "blob.driver",
	"SESSIONFLOW_BLOB_FS_ROOT":       "blob.fs_root",
	"SESSIONFLOW_BLOB_S3_BUCKET":     "blob.s3.bucket",
	"SESSIONFLOW_BLOB_S3_REGION":     "blob.s3.region",
	"SESSIONFLOW_BLOB_S3_ENDPOINT":   "blob.s3.endpoint",
	"SESSIONFLOW_BLOB_S3_PATH_STYLE": "blob.s3.path_style",
	"SESSIONFLOW_ROOT_DATA_DIR":      "custom.root_data_dir",
}

// Options locates the files Load reads. Empty fields use the defaults; a
// missing file is skipped.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load reads, validates and normalises the configuration.
func Load(opts Options) (*Config, error) {
	if opts.ConfigFile == "" {
		opts.ConfigFile = DefaultConfigFile
	}
	if opts.EnvFile == "" {
		opts.EnvFile = DefaultEnvFile
	}

	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("default %s: %w", key, err)
		}
	}

	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
	}

	if _, err := os.Stat(opts.ConfigFile); err == nil {
		if err := k.Load(file.Provider(opts.ConfigFile), dottedJSON{}); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", opts.ConfigFile, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat config file %s: %w", opts.ConfigFile, err)
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envValue maps a known variable to its key. Unknown and blank variables
// are dropped so an empty DJ_HOST keeps the file value.
func envValue(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok || strings.TrimSpace(value) == "" {
		return "", nil
	}
	if key == "custom.root_data_dir" {
		return key, filepath.SplitList(value)
	}
	return key, value
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "WARN" {
		c.LogLevel = LevelWarning
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Config)
		if c.Storage.Driver == string(core.StorageMySQL) && strings.TrimSpace(c.Database.Host) == "" {
			sl.ReportError(c.Database.Host, "Database.Host", "Host", "required_for_mysql", "")
		}
		if c.Storage.Driver == string(core.StoragePostgres) && strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			sl.ReportError(c.Storage.PostgresDSN, "Storage.PostgresDSN", "PostgresDSN", "required_for_postgres", "")
		}
		if c.Blob.Driver == string(blob.DriverS3) && strings.TrimSpace(c.Blob.S3.Bucket) == "" {
			sl.ReportError(c.Blob.S3.Bucket, "Blob.S3.Bucket", "Bucket", "required_for_s3", "")
		}
	}, Config{})
	return v
}

// Validate checks driver names, ports and driver specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.Storage.SQLitePath, err = homedir.Expand(c.Storage.SQLitePath); err != nil {
		return fmt.Errorf("sqlite_path: %w", err)
	}
	if c.Blob.FSRoot, err = homedir.Expand(c.Blob.FSRoot); err != nil {
		return fmt.Errorf("fs_root: %w", err)
	}
	return nil
}

// StorageOptions converts the settings into core storage options.
func (c *Config) StorageOptions() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		MySQL: mysql.Config{
			Host:     c.Database.Host,
			Port:     c.Database.Port,
			User:     c.Database.User,
			Password: c.Database.Password,
			Database: c.Database.Name,
		},
		Prefix:   c.Custom.Database.Prefix,
		SafeMode: c.SafeMode,
	}
}

// BlobOptions converts the settings into blob store options.
func (c *Config) BlobOptions() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          c.Blob.S3.Region,
			Bucket:          c.Blob.S3.Bucket,
			Endpoint:        c.Blob.S3.Endpoint,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
			PathStyle:       c.Blob.S3.PathStyle,
		},
	}
}
