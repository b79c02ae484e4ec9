package dto

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplicationConfig is the root configuration structure.
// The flat top-level keys follow the sink's established config file layout.
type ApplicationConfig struct {
	Bucket                 string `mapstructure:"bucket"`
	Source                 string `mapstructure:"source"`
	StateFilePath          string `mapstructure:"state_file_path"`
	PartitionOnTimeCreated string `mapstructure:"partition_on_time_created"`
	EmitState              bool   `mapstructure:"emit_state"`

	Storage       StorageConfig       `mapstructure:"storage"`
	Staging       StagingConfig       `mapstructure:"staging"`
	Flush         FlushConfig         `mapstructure:"flush"`
	Checkpoint    CheckpointConfig    `mapstructure:"checkpoint"`
	DLQ           DLQConfig           `mapstructure:"dlq"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PartitionOnTime reports whether record creation dates drive partitioning.
func (c *ApplicationConfig) PartitionOnTime() (bool, error) {
	return ParseFlag(c.PartitionOnTimeCreated)
}

// ParseFlag interprets a boolean-like string. Empty means false.
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return false, nil
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}

	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid boolean value %q", s)
	}
	return b, nil
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend     string      `mapstructure:"backend"`
	Format      string      `mapstructure:"format"`
	Compression string      `mapstructure:"compression"`
	S3          S3Config    `mapstructure:"s3"`
	Azure       AzureConfig `mapstructure:"azure"`
	GCS         GCSConfig   `mapstructure:"gcs"`
	File        FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration.
// The bucket is used as the container name.
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// StagingConfig selects where flushed batches are materialized before upload.
type StagingConfig struct {
	Mode string `mapstructure:"mode"`
	Dir  string `mapstructure:"dir"`
}

// FlushConfig contains flush thresholds and upload fan-out.
type FlushConfig struct {
	MaxBufferBytes       int64 `mapstructure:"max_buffer_bytes"`
	MaxRecords           int   `mapstructure:"max_records"`
	MaxAgeSeconds        int   `mapstructure:"max_age_seconds"`
	MaxConcurrentUploads int   `mapstructure:"max_concurrent_uploads"`
}

// CheckpointConfig contains checkpoint settings
type CheckpointConfig struct {
	LoadOnStart bool `mapstructure:"load_on_start"`
}

// DLQConfig contains dead letter topic configuration
type DLQConfig struct {
	Enabled               bool     `mapstructure:"enabled"`
	BootstrapServers      []string `mapstructure:"bootstrap_servers"`
	Topic                 string   `mapstructure:"topic"`
	SecurityProtocol      string   `mapstructure:"security_protocol"`
	SASLMechanism         string   `mapstructure:"sasl_mechanism"`
	SASLUsername          string   `mapstructure:"sasl_username"`
	SASLPassword          string   `mapstructure:"sasl_password"`
	AWSRegion             string   `mapstructure:"aws_region"`
	TLSInsecureSkipVerify bool     `mapstructure:"tls_insecure_skip_verify"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig contains health and metrics server settings
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Validate validates the flush configuration.
func (c *FlushConfig) Validate() error {
	if c.MaxBufferBytes <= 0 {
		return fmt.Errorf("flush.max_buffer_bytes must be positive")
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("flush.max_records must not be negative")
	}
	if c.MaxAgeSeconds < 0 {
		return fmt.Errorf("flush.max_age_seconds must not be negative")
	}
	if c.MaxConcurrentUploads < 1 {
		return fmt.Errorf("flush.max_concurrent_uploads must be at least 1")
	}
	return nil
}

// Validate validates the staging configuration.
func (c *StagingConfig) Validate() error {
	switch c.Mode {
	case "disk", "memory":
		return nil
	default:
		return fmt.Errorf("unsupported staging mode: %s (supported: disk, memory)", c.Mode)
	}
}

// Validate validates the dead letter configuration.
func (c *DLQConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("dlq.bootstrap_servers is required when dlq is enabled")
	}
	if c.Topic == "" {
		return fmt.Errorf("dlq.topic is required when dlq is enabled")
	}
	return nil
}

// Validate validates S3 configuration. An empty region is left to the AWS
// SDK chain (AWS_REGION, shared profile).
func (c *S3Config) Validate() error {
	if c.SSEKMSKeyID != "" && !c.SSEEnabled {
		return fmt.Errorf("storage.s3.sse_kms_key_id requires storage.s3.sse_enabled")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("storage.file.base_path is required for file backend")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("storage.azure.account_name is required for azure backend")
	}
	if c.AccountKey == "" {
		return fmt.Errorf("storage.azure.account_key is required for azure backend")
	}
	return nil
}
