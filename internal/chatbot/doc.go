// Package chatbot はヘルプデスクのチャットボット応答と会話履歴を提供する。
//
// 応答はキーワード照合で生成する。chatbot.service_url が設定されていれば外部の応答サービスを
// 先に呼び、失敗した場合はキーワード照合にフォールバックする。
package chatbot
