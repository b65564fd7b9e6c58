package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(10000), cfg.Graph.ShardingThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Graph.OntologyCacheTimeoutNormal)
	assert.Equal(t, 30*time.Minute, cfg.Graph.OntologyCacheTimeoutBatch)
	assert.Equal(t, 1000, cfg.Graph.OntologyCacheMaxEntries)
	assert.Equal(t, "IN_MEMORY", cfg.Graph.EngineURL)
	assert.Equal(t, SubstrateBadger, cfg.Substrate)
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("SHARDING_THRESHOLD", "3")
	t.Setenv("ENGINE_URL", "http://engine:4567")
	t.Setenv("SUBSTRATE", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(3), cfg.Graph.ShardingThreshold)
	assert.Equal(t, "http://engine:4567", cfg.Graph.EngineURL)
	assert.Equal(t, SubstratePostgres, cfg.Substrate)
	assert.Contains(t, cfg.Database.DSN(), "db.internal")
}

func TestNewConfig_RejectsBadValues(t *testing.T) {
	t.Run("non-positive threshold", func(t *testing.T) {
		t.Setenv("SHARDING_THRESHOLD", "0")
		_, err := NewConfig()
		assert.Error(t, err)
	})

	t.Run("unknown substrate", func(t *testing.T) {
		t.Setenv("SUBSTRATE", "sqlite")
		_, err := NewConfig()
		assert.Error(t, err)
	})
}
