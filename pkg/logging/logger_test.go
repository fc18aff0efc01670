package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"unknown", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { SetLogger(prev) })

	t.Run("リクエストIDがフィールドに付与される", func(t *testing.T) {
		buf.Reset()
		ctx := WithRequestID(context.Background(), "req-1")
		Ctx(ctx).Info().Msg("テスト")
		if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
			t.Errorf("request_idが出力されていない: %s", buf.String())
		}
	})

	t.Run("リクエストIDが無い場合はフィールドを付与しない", func(t *testing.T) {
		buf.Reset()
		Ctx(context.Background()).Info().Msg("テスト")
		if strings.Contains(buf.String(), "request_id") {
			t.Errorf("request_idが出力されている: %s", buf.String())
		}
	})
}
