package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nao1215/vaultdesk/pkg/httpclient"
	"github.com/nao1215/vaultdesk/pkg/logging"
)

// Responder はユーザーのメッセージに対する応答を返す。
type Responder interface {
	Respond(ctx context.Context, userID, message string) (string, error)
}

const (
	replyGreeting = "Hello! How can I assist you today?"
	replyHelp     = "I can help you with IT issues, safety protocols, equipment, HR questions, and general inquiries."
	replyPassword = "To reset your password, please contact IT support through the help desk."
	replyDefault  = "I'm sorry, I don't have information on that specific topic. Please submit a ticket for further assistance."
)

// KeywordResponder はキーワード照合で定型文を返す。
type KeywordResponder struct{}

// Respond は挨拶、ヘルプ、パスワードの順にキーワードを照合する。単語の先頭一致で判定する。
func (KeywordResponder) Respond(_ context.Context, _, message string) (string, error) {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	has := func(prefixes ...string) bool {
		for _, w := range words {
			for _, p := range prefixes {
				if w == p || (len(p) > 2 && strings.HasPrefix(w, p)) {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("hello", "hi"):
		return replyGreeting, nil
	case has("help"):
		return replyHelp, nil
	case has("password"):
		return replyPassword, nil
	default:
		return replyDefault, nil
	}
}

// RemoteResponder は外部の応答サービスを呼び出す。失敗時は Fallback の応答を使う。
type RemoteResponder struct {
	client   *httpclient.Client
	Fallback Responder
}

// NewRemoteResponder は新しいRemoteResponderを生成する。
func NewRemoteResponder(client *httpclient.Client, fallback Responder) *RemoteResponder {
	return &RemoteResponder{client: client, Fallback: fallback}
}

type remoteRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type remoteResponse struct {
	Response string `json:"response"`
}

// errEmptyReply は応答サービスが空の応答を返したことを表す。
var errEmptyReply = errors.New("応答サービスの応答が空です")

// Respond は応答サービスに問い合わせる。
func (r *RemoteResponder) Respond(ctx context.Context, userID, message string) (string, error) {
	var resp remoteResponse
	err := r.client.PostJSON(httpclient.WithUserID(ctx, userID), "/chat", remoteRequest{Message: message, UserID: userID}, &resp)
	if err == nil && strings.TrimSpace(resp.Response) == "" {
		err = errEmptyReply
	}
	if err == nil {
		return resp.Response, nil
	}
	if r.Fallback == nil {
		return "", fmt.Errorf("応答サービスの呼び出しに失敗: %w", err)
	}
	logging.Ctx(ctx).Warn().Err(err).Msg("応答サービスが利用できないためキーワード応答にフォールバック")
	return r.Fallback.Respond(ctx, userID, message)
}
