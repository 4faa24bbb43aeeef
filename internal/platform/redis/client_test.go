package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcon/internal/platform/config"
)

func TestNewRequiresURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{})
	assert.ErrorContains(t, err, "URL is required")

	_, err = New(context.Background(), config.RedisConfig{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestApplyPool(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/0?pool_size=3")
	require.NoError(t, err)

	applyPool(opts, config.RedisConfig{})
	assert.Equal(t, 3, opts.PoolSize, "zero values keep the URL settings")

	applyPool(opts, config.RedisConfig{PoolSize: 20, MinIdleConns: 4, DialTimeout: time.Second, ReadTimeout: 2 * time.Second, WriteTimeout: 3 * time.Second})
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, 3*time.Second, opts.WriteTimeout)
}
