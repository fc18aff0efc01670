package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// NewRequestID は新しいリクエストIDを生成する。
func NewRequestID() string {
	return uuid.New().String()
}

// WithRequestID はリクエストIDを持つコンテキストを返す。
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID はコンテキストからリクエストIDを取り出す。無ければ空文字。
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx はコンテキストの値（request_id）をフィールドに持つロガーを返す。
//
//	logging.Ctx(ctx).Info().Str("user_id", id).Msg("通知を作成")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if id := RequestID(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}
