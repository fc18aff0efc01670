// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの検証と管理者ガード、リクエストIDとアクセスログ、
// パニックリカバリ、CORS設定を含む。
package middleware
