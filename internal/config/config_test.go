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
	t.Parallel()

	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	t.Run("ファイルと環境変数の順に上書きされる", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "vaultdesk.yaml")
		yaml := `
server:
  port: 9000
notification:
  list_limit: 20
  retention_days: 30
smtp:
  host: smtp.example.com
  from: desk@example.com
`
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
		t.Setenv("VAULTDESK_NOTIFICATION__RETENTION_DAYS", "7")
		t.Setenv("JWT_SECRET", "from-env")
		t.Setenv("VAULTDESK_SERVER__CORS_ORIGINS", "https://a.example.com, https://b.example.com")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 20, cfg.Notification.ListLimit)
		assert.Equal(t, 7, cfg.Notification.RetentionDays)
		assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
		assert.True(t, cfg.SMTP.Enabled())
		assert.Equal(t, time.Hour, cfg.Notification.SweepInterval)
	})

	t.Run("存在しない設定ファイルはエラー", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ポート番号が範囲外", func(c *Config) { c.Server.Port = 70000 }},
		{"最大件数が既定件数より小さい", func(c *Config) { c.Notification.MaxListLimit = 10 }},
		{"本番環境で開発用の署名鍵", func(c *Config) { c.Env = "production" }},
		{"本番環境で暗号鍵が未設定", func(c *Config) {
			c.Env = "production"
			c.Auth.JWTSecret = "production-secret"
			c.Vault.AgeIdentity = ""
		}},
		{"送信元の無いSMTP設定", func(c *Config) { c.SMTP.Host = "smtp.example.com" }},
		{"不正なログレベル", func(c *Config) { c.Log.Level = "verbose" }},
		{"不正なチャットボットURL", func(c *Config) { c.Chatbot.ServiceURL = "::not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateProduction(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Env = "production"
	cfg.Auth.JWTSecret = "production-secret"
	cfg.Vault.AgeIdentity = "AGE-SECRET-KEY-1EXAMPLE"
	assert.NoError(t, cfg.Validate())
}

func TestDefaultOrigins(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, cfg.Server.CORSOrigins, cfg.Realtime.AllowedOrigins)
}

func TestEnvKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "server.port", envKey("PORT"))
	assert.Equal(t, "smtp.host", envKey("VAULTDESK_SMTP__HOST"))
	assert.Equal(t, "auth.jwt_secret", envKey("VAULTDESK_AUTH__JWT_SECRET"))
	assert.Equal(t, "", envKey("VAULTDESK_CONFIG"))
	assert.Equal(t, "", envKey("HOME"))
}
