// Package user はユーザーアカウントの管理と認証を提供する。
//
// Repository は通知の受信者解決に使うディレクトリ（notification.Directory）も兼ねる。
// HTTPハンドラはログイン、プロフィール、パスワード変更と管理者向けのユーザー管理を扱い、
// アカウント作成やパスワード変更のたびに通知を発行する。
package user
