package cli

import (
	"fmt"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/voicebatch/internal/config"
	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/gate"
	"github.com/book-expert/voicebatch/internal/modelpool"
	"github.com/book-expert/voicebatch/internal/objectstore"
	"github.com/book-expert/voicebatch/internal/transcription"
	"github.com/book-expert/voicebatch/internal/whisper"
	"github.com/nats-io/nats.go"
)

const (
	bootstrapLogFile = "voicebatch-bootstrap.log"
	logFile          = "voicebatch.log"
)

// runtime holds what every command needs once configuration is loaded.
type runtime struct {
	cfg *config.Config
	log *logger.Logger
}

func (r *runtime) close() {
	closeErr := r.log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
	}
}

// bootstrap loads configuration with a temporary logger, then opens the final
// logger under paths.base_logs_dir. Without --config, the service path uses the
// central configurator and the CLI commands use the built-in defaults.
func bootstrap(opts *globalOptions, useConfigurator bool) (*runtime, error) {
	bootstrapLog, err := logger.New(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	cfg, err := loadConfig(opts.configPath, useConfigurator, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, err
	}

	finalLog, err := logger.New(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return nil, fmt.Errorf("failed to create final logger: %w", err)
	}

	return &runtime{cfg: cfg, log: finalLog}, nil
}

func loadConfig(path string, useConfigurator bool, log *logger.Logger) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case useConfigurator:
		return config.Load(log)
	default:
		return config.LoadDefaults()
	}
}

// transcriptionStack builds the executor, pool and service for audio under root.
func (r *runtime) transcriptionStack(root string, settings transcription.Settings) (*transcription.Service, *modelpool.Executor, error) {
	exec, err := modelpool.NewExecutor(r.cfg.Pool.Workers, r.log)
	if err != nil {
		return nil, nil, err
	}

	client := whisper.NewClientFromEnv(
		r.cfg.Transcription.BaseURL,
		r.cfg.Transcription.APIKeyEnv,
		config.Seconds(r.cfg.Transcription.TimeoutSeconds),
		r.log,
	)

	pool, err := transcription.NewPool(whisper.NewLoader(client), r.cfg.Transcription.ModelCacheSize, exec, r.log)
	if err != nil {
		exec.Release()

		return nil, nil, err
	}

	return transcription.New(gate.NewOS(root), pool, settings, r.log), exec, nil
}

func (r *runtime) transcriptionSettings() transcription.Settings {
	return transcription.Settings{
		Model:       r.cfg.Transcription.Model,
		Language:    r.cfg.Transcription.Language,
		ItemTimeout: r.cfg.ItemTimeout(),
	}
}

// openStore connects the configured object store. The returned cleanup is never nil.
func (r *runtime) openStore() (core.ObjectStore, func(), error) {
	noop := func() {}

	switch r.cfg.Storage.Backend {
	case config.StorageNATS:
		natsConnection, err := nats.Connect(r.cfg.NATS.URL, nats.Name("voicebatch"))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to NATS at %s: %w", r.cfg.NATS.URL, err)
		}

		jetstreamContext, err := natsConnection.JetStream()
		if err != nil {
			natsConnection.Close()

			return nil, noop, fmt.Errorf("failed to open JetStream: %w", err)
		}

		store, err := objectstore.NewNATS(jetstreamContext, r.cfg.NATS.AudioObjectStoreBucket)
		if err != nil {
			natsConnection.Close()

			return nil, noop, err
		}

		return store, natsConnection.Close, nil
	case config.StorageS3:
		store, err := objectstore.NewS3ForRegion(r.cfg.Storage.S3Region, r.cfg.Storage.S3Bucket, r.cfg.Storage.S3Prefix)
		if err != nil {
			return nil, noop, err
		}

		return store, noop, nil
	default:
		return nil, noop, nil
	}
}
