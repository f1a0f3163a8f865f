package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, "meridian.rag.snapshots", cfg.Kafka.Topic)
	assert.Equal(t, time.Hour, cfg.SweepInterval())
	assert.False(t, cfg.KafkaEnabled())
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("log:\n  level: debug\n  format: json\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"level":    "log:\n  level: loud\n",
		"format":   "log:\n  format: xml\n",
		"basepath": "server:\n  base_path: v0\n",
		"sweep":    "scoring:\n  sweep_interval: often\n",
		"topic":    "kafka:\n  brokers: [localhost:9092]\n  topic: \"\"\n",
		"yaml":     "server: [\n",
		"webhook":  "webhooks:\n  - events: [score.recalculate]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	assert.Error(t, err)

	doc := "kafka:\n  brokers: [localhost:9092]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(doc), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.KafkaEnabled())
}

func TestWebhooks(t *testing.T) {
	cfg, err := FromYAML([]byte("webhooks:\n  - url: http://localhost:9000/hook\n    events: [score.recalculate]\n  - url: http://localhost:9001/hook\n    enabled: false\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Webhooks, 2)
	assert.True(t, cfg.Webhooks[0].IsEnabled())
	assert.False(t, cfg.Webhooks[1].IsEnabled())
}
