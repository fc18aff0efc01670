package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config はロガーの設定。
type Config struct {
	// Level は出力する最小レベル（debug, info, warn, error, disabled）。
	Level string
	// Format は出力形式（json または console）。
	Format string
	// Output は出力先。nil の場合は標準エラー出力。
	Output io.Writer
}

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init はグローバルロガーを設定する。複数回呼んでも良い。
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	mu.Lock()
	defer mu.Unlock()
	log = zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel は文字列をzerologのレベルに変換する。不明な値はinfoとして扱う。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger は現在のグローバルロガーを返す。
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger はグローバルロガーを差し替える。テストでの出力捕捉に使う。
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// Debug はdebugレベルのイベントを開始する。
func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

// Info はinfoレベルのイベントを開始する。
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn はwarnレベルのイベントを開始する。
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error はerrorレベルのイベントを開始する。
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}
