package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar は設定ファイルのパスを指定する環境変数名。
const PathEnvVar = "VAULTDESK_CONFIG"

// DevJWTSecret は開発用のJWT署名鍵。本番環境では使用不可。
const DevJWTSecret = "dev-secret-key"

// Config はアプリケーション全体の設定。
type Config struct {
	Env          string             `koanf:"env" validate:"oneof=development production test"`
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Auth         AuthConfig         `koanf:"auth"`
	Log          LogConfig          `koanf:"log"`
	SMTP         SMTPConfig         `koanf:"smtp"`
	Notification NotificationConfig `koanf:"notification"`
	Realtime     RealtimeConfig     `koanf:"realtime"`
	Vault        VaultConfig        `koanf:"vault"`
	Chatbot      ChatbotConfig      `koanf:"chatbot"`
	Bootstrap    BootstrapConfig    `koanf:"bootstrap"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig はSQLiteの設定。
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// AuthConfig はJWT認証の設定。
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret" validate:"required"`
	TokenTTL  time.Duration `koanf:"token_ttl" validate:"min=1m"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// SMTPConfig はメール送信リレーの設定。Host が空の場合メール送信は無効。
type SMTPConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	From            string        `koanf:"from" validate:"omitempty,email"`
	FromName        string        `koanf:"from_name"`
	Timeout         time.Duration `koanf:"timeout" validate:"min=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" validate:"min=0"`
}

// Enabled はメール送信が設定されているかを返す。
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// NotificationConfig は通知サブシステムの設定。
type NotificationConfig struct {
	ListLimit     int           `koanf:"list_limit" validate:"min=1"`
	MaxListLimit  int           `koanf:"max_list_limit" validate:"min=1"`
	RetentionDays int           `koanf:"retention_days" validate:"min=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"min=1m"`
	EmailTimeout  time.Duration `koanf:"email_timeout" validate:"min=1s"`
}

// RealtimeConfig はWebSocketの設定。
type RealtimeConfig struct {
	SendBuffer     int      `koanf:"send_buffer" validate:"min=1"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// VaultConfig は保管庫の暗号化設定。
type VaultConfig struct {
	// AgeIdentity はX25519のage秘密鍵（AGE-SECRET-KEY-1...）。本番環境では必須で、開発環境で空の場合は起動ごとに生成する。
	AgeIdentity string `koanf:"age_identity"`
}

// ChatbotConfig はチャットボットの設定。
type ChatbotConfig struct {
	ServiceURL string        `koanf:"service_url" validate:"omitempty,url"`
	Timeout    time.Duration `koanf:"timeout" validate:"min=0"`
}

// BootstrapConfig は初回起動時に作成する管理者アカウント。
type BootstrapConfig struct {
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
}

// Default はデフォルト設定を返す。
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{Path: "vaultdesk.db"},
		Auth: AuthConfig{
			JWTSecret: DevJWTSecret,
			TokenTTL:  24 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		SMTP: SMTPConfig{
			Port:            587,
			FromName:        "VaultDesk",
			Timeout:         15 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Notification: NotificationConfig{
			ListLimit:     50,
			MaxListLimit:  200,
			RetentionDays: 90,
			SweepInterval: time.Hour,
			EmailTimeout:  20 * time.Second,
		},
		Realtime: RealtimeConfig{
			SendBuffer:     64,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Chatbot:  ChatbotConfig{Timeout: 5 * time.Second},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
		},
	}
}

// Load はデフォルト値、設定ファイル、環境変数の順に設定を読み込む。
// path が空の場合は VAULTDESK_CONFIG、次にカレントディレクトリの vaultdesk.yaml を探す。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("デフォルト設定の読み込みに失敗: %w", err)
	}

	if path = findFile(path); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値を検証する。
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("設定値が不正です (%s): %w", verrs[0].Namespace(), err)
		}
		return fmt.Errorf("設定値が不正です: %w", err)
	}
	if c.SMTP.Enabled() && c.SMTP.From == "" {
		return errors.New("smtp.host を設定する場合は smtp.from も必要です")
	}
	if c.Notification.MaxListLimit < c.Notification.ListLimit {
		return errors.New("notification.max_list_limit は notification.list_limit 以上である必要があります")
	}
	if c.Env == "production" && c.Auth.JWTSecret == DevJWTSecret {
		return errors.New("本番環境では auth.jwt_secret を設定する必要があります")
	}
	// 鍵が無いと起動ごとに使い捨ての鍵が生成され、保存済みの秘密を復号できなくなる
	if c.Env == "production" && c.Vault.AgeIdentity == "" {
		return errors.New("本番環境では vault.age_identity を設定する必要があります")
	}
	return nil
}

// findFile は読み込む設定ファイルを決定する。見つからなければ空文字を返す。
func findFile(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	if _, err := os.Stat("vaultdesk.yaml"); err == nil {
		return "vaultdesk.yaml"
	}
	return ""
}

// legacyKeys は従来のフラットな環境変数名と設定パスの対応表。
var legacyKeys = map[string]string{
	"PORT":        "server.port",
	"JWT_SECRET":  "auth.jwt_secret",
	"DB_PATH":     "database.path",
	"SMTP_HOST":   "smtp.host",
	"SMTP_PORT":   "smtp.port",
	"SMTP_USER":   "smtp.username",
	"SMTP_PASS":   "smtp.password",
	"SMTP_FROM":   "smtp.from",
	"LOG_LEVEL":   "log.level",
	"APP_ENV":     "env",
	"CORS_ORIGIN": "server.cors_origins",
}

// envKey は環境変数名を設定パスに変換する。対象外の変数は空文字を返して無視させる。
func envKey(key string) string {
	if p, ok := legacyKeys[key]; ok {
		return p
	}
	const prefix = "VAULTDESK_"
	if !strings.HasPrefix(key, prefix) || key == PathEnvVar {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, prefix)), "__", ".")
}

// sliceKeys はカンマ区切り文字列からスライスへ変換する設定パス。
var sliceKeys = []string{"server.cors_origins", "realtime.allowed_origins"}

func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceKeys {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("%s の設定に失敗: %w", path, err)
		}
	}
	return nil
}
