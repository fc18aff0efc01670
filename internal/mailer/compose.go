package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// SubjectPrefix はすべての通知メールの件名に付く接頭辞。
const SubjectPrefix = "VaultDesk: "

var bodyTemplate = template.Must(template.New("notification").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #2c3e50;">VaultDesk Notification</h2>
  <div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px;">
    <p>{{.}}</p>
  </div>
  <p style="color: #7f8c8d; font-size: 12px; margin-top: 20px;">
    This is an automated notification from VaultDesk. Please do not reply to this email.
  </p>
</div>
`))

// RenderBody は本文をHTMLテンプレートに埋め込む。本文はエスケープされる。
func RenderBody(message string) (string, error) {
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, message); err != nil {
		return "", fmt.Errorf("メール本文の生成に失敗: %w", err)
	}
	return buf.String(), nil
}

// compose はHTML単一パートのMIMEメッセージを組み立てる。
func compose(from, to *mail.Address, subject, html string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("Message-Idの生成に失敗: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("メッセージの作成に失敗: %w", err)
	}
	if _, err := io.WriteString(w, html); err != nil {
		return nil, fmt.Errorf("本文の書き込みに失敗: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("メッセージの確定に失敗: %w", err)
	}
	return buf.Bytes(), nil
}
