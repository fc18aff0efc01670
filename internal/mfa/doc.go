// Package mfa はTOTPによる多要素認証の登録・検証・解除を提供する。
//
// シークレットは保管庫と同じage鍵で暗号化してusersテーブルに保存する。
package mfa
