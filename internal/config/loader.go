package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/targets3/internal/config/dto"
	"github.com/jittakal/targets3/internal/encoder"
	"github.com/jittakal/targets3/internal/flush"
	"github.com/jittakal/targets3/pkg/message"
)

// EnvPrefix prefixes environment overrides, e.g. TARGETS3_FLUSH_MAX_RECORDS.
const EnvPrefix = "TARGETS3"

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables.
// The file format follows the extension; files without one are read as JSON.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path == "" {
		return nil, errors.New("config file path is required")
	}

	l.v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		l.v.SetConfigType("json")
	}
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in values that reference them
	for _, key := range l.v.AllKeys() {
		value, ok := l.v.Get(key).(string)
		if ok && strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Storage.Compression == "" {
		config.Storage.Compression = encoder.DefaultCompression(message.Format(config.Storage.Format))
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Sink defaults; empty defaults make the keys visible to env overrides
	l.v.SetDefault("bucket", "")
	l.v.SetDefault("source", "")
	l.v.SetDefault("state_file_path", "")
	l.v.SetDefault("partition_on_time_created", "")
	l.v.SetDefault("emit_state", true)

	// Storage defaults
	l.v.SetDefault("storage.backend", "s3")
	l.v.SetDefault("storage.format", string(message.FormatJSON))
	l.v.SetDefault("storage.compression", "")
	l.v.SetDefault("storage.s3.region", "")
	l.v.SetDefault("storage.s3.endpoint", "")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", false)
	l.v.SetDefault("storage.gcs.use_default_credential", true)
	l.v.SetDefault("storage.azure.account_name", "")
	l.v.SetDefault("storage.azure.account_key", "")
	l.v.SetDefault("storage.file.base_path", "")

	// Staging defaults
	l.v.SetDefault("staging.mode", "disk")
	l.v.SetDefault("staging.dir", "")

	// Flush defaults
	l.v.SetDefault("flush.max_buffer_bytes", flush.DefaultMaxBufferBytes)
	l.v.SetDefault("flush.max_records", 0)
	l.v.SetDefault("flush.max_age_seconds", 0)
	l.v.SetDefault("flush.max_concurrent_uploads", flush.DefaultMaxConcurrentUploads)

	// Checkpoint defaults
	l.v.SetDefault("checkpoint.load_on_start", false)

	// Dead letter defaults
	l.v.SetDefault("dlq.enabled", false)
	l.v.SetDefault("dlq.topic", "")
	l.v.SetDefault("dlq.security_protocol", "PLAINTEXT")
	l.v.SetDefault("dlq.sasl_mechanism", "")

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stderr")
	l.v.SetDefault("observability.server.enabled", false)
	l.v.SetDefault("observability.server.addr", ":9090")
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if config.Bucket == "" {
		return errors.New("bucket is required")
	}
	if config.Source == "" {
		return errors.New("source is required")
	}
	if strings.Contains(config.Source, "/") {
		return fmt.Errorf("source must not contain '/': %s", config.Source)
	}
	if _, err := config.PartitionOnTime(); err != nil {
		return fmt.Errorf("partition_on_time_created: %w", err)
	}

	// Storage validation
	switch config.Storage.Backend {
	case "s3":
		if err := config.Storage.S3.Validate(); err != nil {
			return err
		}
	case "gcs":
	case "azure":
		if err := config.Storage.Azure.Validate(); err != nil {
			return err
		}
	case "file":
		if err := config.Storage.File.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (supported: s3, gcs, azure, file)", config.Storage.Backend)
	}

	// Format validation
	format := message.Format(config.Storage.Format)
	if !slices.Contains(encoder.SupportedFormats(), format) {
		return fmt.Errorf("unsupported storage format: %s", config.Storage.Format)
	}
	if !slices.Contains(encoder.SupportedCompressions(format), config.Storage.Compression) {
		return fmt.Errorf("unsupported compression %q for format %s", config.Storage.Compression, format)
	}

	if err := config.Staging.Validate(); err != nil {
		return err
	}
	if err := config.Flush.Validate(); err != nil {
		return err
	}
	if err := config.DLQ.Validate(); err != nil {
		return err
	}

	return nil
}
