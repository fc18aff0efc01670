// Package mailer は通知メールを組み立ててSMTPリレーへ送信する。
//
// 送信は1回だけ試行するベストエフォートで、連続して失敗するとサーキットブレーカーが
// 開き、一定時間はリレーへ接続せずに即座に失敗を返す。
package mailer
