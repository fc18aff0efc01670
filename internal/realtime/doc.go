// Package realtime はWebSocketによるリアルタイム配信を担う。
//
// Registry は受信者キー（user_<id> または group_<tag>）からライブ接続への対応表で、
// 通知のプッシュ先を解決する。配信はベストエフォートで、接続が無いキーへの
// プッシュはエラーにならない。永続的な記録は通知台帳が持つ。
//
// /ws エンドポイントはJWTで接続を認証し、クライアントが宣言した識別子が
// トークンの主体と一致する場合のみ Registry に参加させる。
package realtime
