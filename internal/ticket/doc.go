// Package ticket はサポートチケットの作成・参照・ステータス更新を提供する。
//
// チケットの作成は全管理者への ticket_created 通知を、ステータス更新は起票者への
// ticket_updated 通知を発行する。どちらも管理者グループへ ticket_event フレームを
// プッシュし、管理画面のライブ更新に使う。
package ticket
