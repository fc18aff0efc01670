package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/sony/gobreaker/v2"
)

// ErrDisabled はメール送信が設定されていないことを表す。
var ErrDisabled = errors.New("メール送信は無効です")

// Config はDispatcherの設定。
type Config struct {
	// From は送信元アドレス。
	From string
	// FromName は送信元の表示名。
	FromName string
	// BreakerFailures は回路を開くまでの連続失敗回数。
	BreakerFailures uint32
	// BreakerCooldown は回路が開いてから半開状態へ移るまでの時間。
	BreakerCooldown time.Duration
}

// Dispatcher は通知メールを送信する。
type Dispatcher struct {
	relay   Relay
	from    *mail.Address
	breaker *gobreaker.CircuitBreaker[struct{}]
	now     func() time.Time
}

// New は新しいDispatcherを生成する。relay が nil の場合、Send は常に ErrDisabled を返す。
func New(relay Relay, cfg Config) *Dispatcher {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	return &Dispatcher{
		relay: relay,
		from:  &mail.Address{Name: cfg.FromName, Address: cfg.From},
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "smtp-relay",
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("メール送信のサーキットブレーカーの状態が変化")
			},
		}),
		now: time.Now,
	}
}

// Enabled は送信先リレーが設定されているかを返す。
func (d *Dispatcher) Enabled() bool {
	return d.relay != nil
}

// Send は件名に "VaultDesk: " を付け、本文をHTMLで包んだメールを1回だけ送信する。
func (d *Dispatcher) Send(ctx context.Context, to, subject, message string) error {
	if d.relay == nil {
		return ErrDisabled
	}

	html, err := RenderBody(message)
	if err != nil {
		return err
	}
	raw, err := compose(d.from, &mail.Address{Address: to}, SubjectPrefix+subject, html, d.now())
	if err != nil {
		return err
	}

	_, err = d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, d.relay.Deliver(ctx, d.from.Address, to, raw)
	})
	if err != nil {
		return fmt.Errorf("%s へのメール送信に失敗: %w", to, err)
	}
	return nil
}
