// Package store はSQLiteデータベースの接続とスキーマ管理を担う。
package store
