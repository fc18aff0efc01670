// Package logging はzerologベースの共通ロガーを提供する。
//
// 起動時に Init で出力形式とレベルを設定し、各パッケージは Info/Warn/Error や
// Ctx(ctx) を通じて構造化ログを出力する。Ctx はコンテキストに積まれたリクエストIDを
// 自動でフィールドに付与する。
package logging
