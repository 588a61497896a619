package postgres

import (
	"testing"
	"time"

	"chainpay-reconciler/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:            "db.internal",
		Port:            5433,
		User:            "reconciler",
		Password:        "s3cret",
		DBName:          "chainpay",
		SSLMode:         "disable",
		MaxConns:        12,
		MinConns:        3,
		ConnMaxLifetime: 45 * time.Minute,
	}

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", poolCfg.ConnConfig.Host)
	assert.Equal(t, uint16(5433), poolCfg.ConnConfig.Port)
	assert.Equal(t, "chainpay", poolCfg.ConnConfig.Database)
	assert.Equal(t, int32(12), poolCfg.MaxConns)
	assert.Equal(t, int32(3), poolCfg.MinConns)
	assert.Equal(t, 45*time.Minute, poolCfg.MaxConnLifetime)
}

func TestPoolConfig_ZeroValuesKeepPgxDefaults(t *testing.T) {
	poolCfg, err := poolConfig(config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", DBName: "d", SSLMode: "disable",
	})
	require.NoError(t, err)
	assert.Positive(t, poolCfg.MaxConns)
	assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
}
