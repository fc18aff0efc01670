package mailer

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTPServer は最小限のSMTP会話を行い、受け取ったDATAを返すテスト用サーバー。
func fakeSMTPServer(t *testing.T) (host string, port int, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		write("220 localhost ESMTP")
		var data strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					ch <- data.String()
					write("250 OK")
					continue
				}
				data.WriteString(line)
				continue
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250 localhost")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 OK")
			case cmd == "DATA":
				inData = true
				write("354 go ahead")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("250 OK")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, ch
}

func TestSMTPRelay(t *testing.T) {
	t.Parallel()

	t.Run("SMTPサーバーへメッセージを送信する", func(t *testing.T) {
		t.Parallel()
		host, port, received := fakeSMTPServer(t)
		relay := &SMTPRelay{Host: host, Port: port, Timeout: 5 * time.Second}
		d := New(relay, Config{From: "desk@example.com"})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, d.Send(ctx, "bob@example.com", "Ticket Updated", "resolved"))

		select {
		case data := <-received:
			assert.Contains(t, data, "Subject: VaultDesk: Ticket Updated")
			assert.Contains(t, data, "text/html")
		case <-time.After(5 * time.Second):
			t.Fatal("DATAを受信できなかった")
		}
	})

	t.Run("接続できない場合はエラー", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		require.NoError(t, ln.Close())

		relay := &SMTPRelay{Host: "127.0.0.1", Port: port, Timeout: time.Second}
		err = relay.Deliver(context.Background(), "a@example.com", "b@example.com", []byte("x"))
		assert.Error(t, err)
	})
}
