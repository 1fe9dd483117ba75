// Package config_test tests the configuration loading for the voicebatch service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/voicebatch/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
addr = ":8080"

[paths]
base_logs_dir = "/var/log/voicebatch"
audio_root = "/srv/audio"
weight_root = "/srv/weights"

[transcription]
model = "base"
language = "de"
item_timeout_seconds = 45
model_cache_size = 2

[nats]
url = "nats://127.0.0.1:4222"
batch_subject = "audio.transcribe.batch"
audio_object_store_bucket = "AUDIO_FILES"

[storage]
backend = "s3"
s3_bucket = "voices"
s3_region = "eu-west-1"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/srv/audio", cfg.Paths.AudioRoot)
	assert.Equal(t, "/srv/weights", cfg.Paths.WeightRoot)
	assert.Equal(t, "base", cfg.Transcription.Model)
	assert.Equal(t, "de", cfg.Transcription.Language)
	assert.Equal(t, 2, cfg.Transcription.ModelCacheSize)
	assert.Equal(t, 45*time.Second, cfg.ItemTimeout())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, config.StorageS3, cfg.Storage.Backend)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3Region)
	require.NoError(t, cfg.Validate())
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, "..", cfg.Paths.AudioRoot)
	assert.Equal(t, "weights", cfg.Paths.WeightRoot)
	assert.Equal(t, "tiny", cfg.Transcription.Model)
	assert.Equal(t, "en", cfg.Transcription.Language)
	assert.Equal(t, config.StorageNone, cfg.Storage.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicebatch.toml")
	require.NoError(t, os.WriteFile(path, []byte("[transcription]\nmodel = \"small\"\n"), 0o600))

	t.Setenv("weight_root", "/opt/rvc/weights")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "small", cfg.Transcription.Model)
	assert.Equal(t, "en", cfg.Transcription.Language, "unset keys keep their defaults")
	assert.Equal(t, "/opt/rvc/weights", cfg.Paths.WeightRoot)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\nbackend = \"ftp\"\n"), 0o600))

	_, err = config.LoadFile(path)
	require.ErrorIs(t, err, config.ErrUnknownStorageBackend)
}

func TestValidate_RejectsNegativeValues(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Transcription.ItemTimeoutSeconds = -1

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrNegativeValue)
	assert.Contains(t, err.Error(), "transcription.item_timeout_seconds")
}
