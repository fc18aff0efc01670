package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// Relay はメッセージを外部のメールリレーへ渡す。
type Relay interface {
	Deliver(ctx context.Context, from, to string, raw []byte) error
}

// SMTPRelay はSMTPサーバーへ直接送信するRelay。
// サーバーがSTARTTLSを提供する場合は暗号化し、Username が設定されていれば認証する。
type SMTPRelay struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Deliver は1通のメッセージを送信する。
func (r *SMTPRelay) Deliver(ctx context.Context, from, to string, raw []byte) error {
	addr := net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
	dialer := &net.Dialer{Timeout: r.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTPサーバーへの接続に失敗: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, r.Host)
	if err != nil {
		return fmt.Errorf("SMTPクライアントの作成に失敗: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: r.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("STARTTLSに失敗: %w", err)
		}
	}
	if r.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", r.Username, r.Password, r.Host)); err != nil {
			return fmt.Errorf("SMTP認証に失敗: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("送信元の設定に失敗: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("宛先の設定に失敗: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("本文送信の開始に失敗: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("本文の送信に失敗: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("本文送信の完了に失敗: %w", err)
	}
	// 本文は受理済みなのでQUITの失敗は無視する
	_ = client.Quit()
	return nil
}
