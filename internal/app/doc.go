// Package app はVaultDeskの構成ルート。
//
// 設定からデータベース、通知サブシステム、各機能のHTTPハンドラを組み立て、
// HTTPサーバーと通知の保持期間スイーパーをsutureのスーパーバイザー配下で実行する。
package app
