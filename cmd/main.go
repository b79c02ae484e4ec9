package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/targets3/internal/buffer"
	"github.com/jittakal/targets3/internal/checkpoint"
	"github.com/jittakal/targets3/internal/config"
	"github.com/jittakal/targets3/internal/config/dto"
	"github.com/jittakal/targets3/internal/encoder"
	"github.com/jittakal/targets3/internal/envelope"
	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/internal/flush"
	"github.com/jittakal/targets3/internal/ingest"
	"github.com/jittakal/targets3/internal/kafka"
	"github.com/jittakal/targets3/internal/observability"
	"github.com/jittakal/targets3/internal/partition"
	"github.com/jittakal/targets3/internal/server"
	"github.com/jittakal/targets3/internal/storage"
	"github.com/jittakal/targets3/pkg/message"
	pkgstorage "github.com/jittakal/targets3/pkg/storage"
)

// Process exit codes.
const (
	exitOK               = 0
	exitStartup          = 1
	exitCheckpointFailed = 2
	exitUploadFailed     = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}

	cfg, err := config.NewLoader().Load(cfgPath)
	if err != nil {
		observability.NewLogger(observability.LoggingConfig{}).Error("failed to load configuration", "error", err)
		return exitStartup
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})

	processorID := uuid.NewString()
	logger.Info("starting targets3",
		"processor_id", processorID,
		"source", cfg.Source,
		"bucket", cfg.Bucket,
		"backend", cfg.Storage.Backend,
		"format", cfg.Storage.Format,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions, run in reverse order
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, func() error {
			if err := fn(); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
		logger.Debug("registered cleanup", "component", name)
	}
	defer func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			if err := cleanupFuncs[i](); err != nil {
				logger.Error("cleanup failed", "error", err)
			}
		}
	}()

	partitionOnTime, _ := cfg.PartitionOnTime()

	tracker := checkpoint.NewTracker(checkpoint.Config{Path: cfg.StateFilePath}, logger, metrics)
	if cfg.Checkpoint.LoadOnStart {
		if err := tracker.Load(); err != nil {
			logger.Error("failed to load state file", "error", err)
			return exitStartup
		}
	}

	store, err := newObjectStore(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to create object store", "error", err)
		return exitStartup
	}
	addCleanup("object-store", store.Close)

	enc, err := encoder.NewFactory(message.Format(cfg.Storage.Format), cfg.Storage.Compression).CreateEncoder()
	if err != nil {
		logger.Error("failed to create encoder", "error", err)
		return exitStartup
	}

	dlq, err := kafka.NewDLQPublisher(dlqConfig(cfg.DLQ), processorID, cfg.Source, logger, metrics)
	if err != nil {
		logger.Error("failed to create DLQ publisher", "error", err)
		return exitStartup
	}
	addCleanup("dlq-publisher", dlq.Close)

	coordinator := flush.NewCoordinator(
		flush.Config{
			Bucket:               cfg.Bucket,
			MaxConcurrentUploads: cfg.Flush.MaxConcurrentUploads,
		},
		store,
		enc,
		storage.NewKeyBuilder(cfg.Source),
		newStagerFactory(cfg.Staging),
		logger,
		metrics,
	)

	buffers := buffer.NewManager()

	deps := ingest.Dependencies{
		Parser:   envelope.NewParser(),
		Resolver: partition.NewResolver(partition.Config{PartitionOnTimeCreated: partitionOnTime}),
		Buffers:  buffers,
		Tracker:  tracker,
		Policy: flush.NewPolicy(flush.PolicyConfig{
			MaxBufferBytes: cfg.Flush.MaxBufferBytes,
			MaxRecords:     cfg.Flush.MaxRecords,
			MaxAgeSeconds:  cfg.Flush.MaxAgeSeconds,
		}),
		Flusher: coordinator,
	}
	if cfg.DLQ.Enabled {
		deps.DeadLetters = dlq
	}

	loop := ingest.NewLoop(ingest.Config{
		EmitState:   cfg.EmitState,
		StateOutput: os.Stdout,
	}, deps, logger, metrics)

	if cfg.Observability.Server.Enabled {
		httpServer := server.NewServer(
			cfg.Observability.Server.Addr,
			server.NewLoopChecker(loop, buffers),
			registry,
			logger,
		)
		if err := httpServer.Start(); err != nil {
			logger.Error("failed to start HTTP server", "error", err)
			return exitStartup
		}
		addCleanup("http-server", func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	summary, err := loop.Run(ctx, os.Stdin)
	if err != nil {
		if errors.IsCheckpointPersistError(err) {
			logger.Error("stopping on checkpoint persist failure", "error", err)
			return exitCheckpointFailed
		}
		logger.Error("ingestion failed", "error", err)
		return exitStartup
	}

	if summary.UploadFailures > 0 {
		logger.Error("run finished with failed uploads", "upload_failures", summary.UploadFailures)
		return exitUploadFailed
	}

	logger.Info("targets3 stopped successfully")
	return exitOK
}

// newObjectStore creates the object store for the configured backend.
func newObjectStore(
	ctx context.Context,
	cfg *dto.ApplicationConfig,
	logger *slog.Logger,
	metrics storage.MetricsCollector,
) (pkgstorage.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			SSEEnabled:   cfg.Storage.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Storage.S3.SSEKMSKeyID,
		}, logger, metrics)
	case "gcs":
		return storage.NewGCSStore(ctx, storage.GCSConfig{
			ProjectID:            cfg.Storage.GCS.ProjectID,
			CredentialsFile:      cfg.Storage.GCS.CredentialsFile,
			CredentialsJSON:      cfg.Storage.GCS.CredentialsJSON,
			Endpoint:             cfg.Storage.GCS.Endpoint,
			UseDefaultCredential: cfg.Storage.GCS.UseDefaultCredential,
		}, logger, metrics)
	case "azure":
		return storage.NewAzureStore(storage.AzureConfig{
			AccountName: cfg.Storage.Azure.AccountName,
			AccountKey:  cfg.Storage.Azure.AccountKey,
			Endpoint:    cfg.Storage.Azure.Endpoint,
		}, logger, metrics)
	case "file":
		return storage.NewFileStore(storage.FileConfig{
			BasePath: cfg.Storage.File.BasePath,
		}, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: s3, gcs, azure, file)", cfg.Storage.Backend)
	}
}

// newStagerFactory selects disk or memory staging.
func newStagerFactory(cfg dto.StagingConfig) pkgstorage.StagerFactory {
	if cfg.Mode == "memory" {
		return storage.MemoryStagerFactory()
	}

	dir := cfg.Dir
	if dir == "" {
		dir = storage.DefaultStagingDir()
	}
	return storage.DirStagerFactory(dir)
}

func dlqConfig(cfg dto.DLQConfig) kafka.DLQConfig {
	return kafka.DLQConfig{
		Enabled:          cfg.Enabled,
		BootstrapServers: cfg.BootstrapServers,
		Topic:            cfg.Topic,
		Security: kafka.SecurityConfig{
			SecurityProtocol:      cfg.SecurityProtocol,
			SASLMechanism:         cfg.SASLMechanism,
			SASLUsername:          cfg.SASLUsername,
			SASLPassword:          cfg.SASLPassword,
			AWSRegion:             cfg.AWSRegion,
			TLSInsecureSkipVerify: cfg.TLSInsecureSkipVerify,
		},
	}
}
