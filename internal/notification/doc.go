// Package notification は通知の永続化と配信を担う。
//
// Ledger は受信者ごとの通知を永続化する台帳、Preferences はユーザーごとの
// 配信設定（アプリ内 / メール）を扱う。Orchestrator は受信者セレクタを解決し、
// 受信者ごとに独立したタスクで「台帳への追記 → 設定の参照 → プッシュ / メール送信」を行う。
// 台帳への追記は配信の成否と独立しており、プッシュやメールの失敗で巻き戻されることはない。
package notification
