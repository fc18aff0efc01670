// Package httpclient は外部サービスとJSONでやり取りするHTTPクライアントを提供する。
//
// チャットボットの応答サービスなど、VaultDeskが呼び出す外部APIとの通信に使う。
// リクエストIDとユーザーIDをヘッダーで伝播し、2xx以外の応答は *StatusError として返す。
package httpclient
