// Package biometric は生体認証の試行ログを記録する。失敗した試行は全管理者に通知する。
package biometric
