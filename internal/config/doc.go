// Package config はVaultDeskの設定を読み込む。
//
// 優先順位は「構造体のデフォルト値 < YAMLファイル < 環境変数」。環境変数は
// VAULTDESK_ プレフィックスと "__" 区切りでセクションを表す（例: VAULTDESK_SMTP__HOST）。
// PORT や JWT_SECRET など従来のフラットな名前も受け付ける。
package config
