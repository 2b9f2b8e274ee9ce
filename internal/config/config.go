// Package config handles configuration settings for the application.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds the configuration settings for the application.
type Config struct {
	Addr    string `koanf:"addr" validate:"required,ip_port"`
	DataDir string `koanf:"data_dir" validate:"required,custom_path"`

	// HotRoot and ColdRoot are the filesystem roots BlobStore resolves a
	// storage class to (domain.StorageClass.Root).
	HotRoot  string `koanf:"hot_root" validate:"required,custom_path"`
	ColdRoot string `koanf:"cold_root" validate:"required,custom_path"`

	MaxUploadBytes int64 `koanf:"max_upload_bytes" validate:"required,gt=0"`
	ChunkSizeBytes int   `koanf:"chunk_size_bytes" validate:"required,gt=0"`

	MaxConcurrentUploads int `koanf:"max_concurrent_uploads" validate:"required,gt=0"`
	MaxOpenConns         int `koanf:"max_open_conns" validate:"required,gt=0"`

	MaxListLimit int `koanf:"max_list_limit" validate:"required,gt=0"`

	GCInterval       time.Duration `koanf:"-" validate:"required"`
	GCBatchSize      int           `koanf:"gc_batch_size" validate:"required,gt=0"`
	StuckWritingAge  time.Duration `koanf:"-" validate:"required"`
	GCIntervalRaw    string        `koanf:"gc_interval"`
	StuckWritingSecs string        `koanf:"stuck_writing_age"`

	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,ip_port"`
}

// DefaultAppConfig provides the default app configuration values.
var DefaultAppConfig = Config{
	Addr:                 ":8080",
	DataDir:              "/data",
	HotRoot:              "/data/blobs/hot",
	ColdRoot:             "/data/blobs/cold",
	MaxUploadBytes:       5 * 1024 * 1024 * 1024, // 5 GiB
	ChunkSizeBytes:       128 * 1024,
	MaxConcurrentUploads: 16,
	MaxOpenConns:         32,
	MaxListLimit:         1000,
	GCIntervalRaw:        "1m",
	StuckWritingSecs:     "1h",
	GCBatchSize:          100,
	MetricsAddr:          "", // disabled by default
}

// defaultLoader loads default configuration values into the provided Koanf instance
// using the structs provider and the DefaultAppConfig struct. It returns an error
// if loading fails.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

// envLoader is a function that loads environment variables with the prefix
// "OBJVAULT_". It transforms the keys to lowercase and removes the prefix.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{Prefix: "OBJVAULT_", TransformFunc: func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, "OBJVAULT_"))
		return key, strings.TrimSpace(value)
	}}), nil)
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if ip != "" && net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// validDirNotExists checks that the provided value is a directory path, but does not ensure it exists.
func validDirNotExists(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return false
	}
	cleaned := filepath.Clean(raw)
	if cleaned == "." || cleaned == string(os.PathSeparator) {
		return false
	}
	for _, part := range strings.Split(cleaned, string(os.PathSeparator)) {
		if part == ".." {
			return false
		}
	}
	return true
}

// registerValidators registers custom validation functions with the provided validator instance.
var registerValidators = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	return v.RegisterValidation("custom_path", validDirNotExists)
}

// Load loads the configuration by applying default values and overriding them
// with environment variables. It validates the final configuration and returns
// a Config instance or an error if validation fails.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, err
	}
	if err := envLoader(k); err != nil {
		return nil, err
	}

	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, err
	}

	gcInterval, err := time.ParseDuration(cfg.GCIntervalRaw)
	if err != nil {
		return nil, fmt.Errorf("parse gc_interval: %w", err)
	}
	cfg.GCInterval = gcInterval

	stuckAge, err := time.ParseDuration(cfg.StuckWritingSecs)
	if err != nil {
		return nil, fmt.Errorf("parse stuck_writing_age: %w", err)
	}
	cfg.StuckWritingAge = stuckAge

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidators(validate); err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SQLiteDSN returns a fixed hardened SQLite DSN derived from DataDir.
// WAL mode, foreign keys, busy timeout, and FULL synchronous are enforced.
func (c *Config) SQLiteDSN() string {
	dbPath := filepath.Join(c.DataDir, "objvault.db")
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL", dbPath)
}
