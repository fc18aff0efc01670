// Package vault はユーザーごとの資格情報保管庫を提供する。
//
// 保管するパスワードはageのX25519鍵で暗号化し、ASCIIアーマー形式でDBに保存する。
// 復号は所有者が個別のアイテムを取得したときだけ行う。
package vault
