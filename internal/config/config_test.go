package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SOTAGS_SERVER_HOST",
	"SOTAGS_SERVER_PORT",
	"SOTAGS_DATABASE_TYPE",
	"SOTAGS_DATABASE_DSN",
	"SOTAGS_CACHE_DRIVER",
	"SOTAGS_CACHE_KEY",
	"SOTAGS_CACHE_SLIDING",
	"SOTAGS_CACHE_ABSOLUTE",
	"SOTAGS_SOURCE_PAGE_SIZE",
	"SOTAGS_SOURCE_MIN_RECORDS",
	"SOTAGS_SOURCE_TIMEOUT",
	"SOTAGS_REFRESH_SCHEDULE",
	"SOTAGS_LOG_LEVEL",
	"SOTAGS_CORS_ALLOWED_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if value, ok := os.LookupEnv(key); ok {
			t.Setenv(key, value) // 测试结束后自动恢复
			os.Unsetenv(key)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
		assert.Equal(t, "", cfg.Database.Type)
		assert.Equal(t, 100, cfg.Database.BatchSize)
		assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
		assert.Equal(t, "memory", cfg.Cache.Driver)
		assert.Equal(t, "AllTags", cfg.Cache.Key)
		assert.Equal(t, 45*time.Second, cfg.Cache.Sliding)
		assert.Equal(t, 300*time.Second, cfg.Cache.Absolute)
		assert.Equal(t, "https://api.stackexchange.com/2.3", cfg.Source.BaseURL)
		assert.Equal(t, "stackoverflow", cfg.Source.Site)
		assert.Equal(t, 100, cfg.Source.PageSize)
		assert.Equal(t, 1000, cfg.Source.MinRecords)
		assert.Equal(t, 15*time.Second, cfg.Source.Timeout)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Empty(t, cfg.Refresh.Schedule)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SOTAGS_SERVER_PORT", "9090")
		t.Setenv("SOTAGS_CACHE_KEY", "NotAllTags")
		t.Setenv("SOTAGS_CACHE_SLIDING", "10s")
		t.Setenv("SOTAGS_SOURCE_MIN_RECORDS", "250")
		t.Setenv("SOTAGS_CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
		t.Setenv("SOTAGS_REFRESH_SCHEDULE", "@every 1h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "NotAllTags", cfg.Cache.Key)
		assert.Equal(t, 10*time.Second, cfg.Cache.Sliding)
		assert.Equal(t, 250, cfg.Source.MinRecords)
		assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "@every 1h", cfg.Refresh.Schedule)
	})

	t.Run("无效的时长", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SOTAGS_CACHE_ABSOLUTE", "five minutes")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("不支持的数据库类型", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SOTAGS_DATABASE_TYPE", "oracle")
		t.Setenv("SOTAGS_DATABASE_DSN", "x")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("数据库类型需要DSN", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SOTAGS_DATABASE_TYPE", "postgres")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("页大小超过上限", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SOTAGS_SOURCE_PAGE_SIZE", "500")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a , ,b "))
	assert.Empty(t, parseList(""))
}
