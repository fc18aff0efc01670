package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nao1215/vaultdesk/internal/mailer"
	"github.com/nao1215/vaultdesk/internal/realtime"
	"github.com/nao1215/vaultdesk/pkg/event"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Appender は通知を台帳に追記する。
type Appender interface {
	Append(ctx context.Context, e Entry) (Notification, error)
}

// PreferenceReader は配信設定を参照する。
type PreferenceReader interface {
	Get(ctx context.Context, userID string) (Preference, error)
}

// Pusher はライブ接続へフレームをプッシュし、受け付けた接続数と破棄した接続数を返す。
type Pusher interface {
	Broadcast(key realtime.Key, msg realtime.Message) (delivered, dropped int)
}

// Mailer は通知メールを送信する。
type Mailer interface {
	Send(ctx context.Context, to, subject, message string) error
}

// Request は1回の通知要求。
type Request struct {
	Selector Selector
	Type     event.Type
	Title    string
	Message  string
	Payload  event.Payload
}

// Report は1回の通知要求の配信結果。
type Report struct {
	// Recipients は解決された受信者数。
	Recipients int
	// Persisted は台帳への追記に成功した件数。
	Persisted int
	// PersistFailures は台帳への追記に失敗した件数。
	PersistFailures int
	// Pushes はアプリ内配信を試みた受信者数。
	Pushes int
	// LiveDeliveries はフレームを受け付けたライブ接続の総数。
	LiveDeliveries int
	// Emails は送信に成功したメールの件数。
	Emails int
	// EmailFailures は送信に失敗したメールの件数。
	EmailFailures int
}

// outcome は受信者1人分の処理結果。
type outcome struct {
	persisted     bool
	pushed        bool
	live          int
	emailed       bool
	emailFailed   bool
	persistFailed bool
}

// Dependencies はOrchestratorが使う協調コンポーネント。
type Dependencies struct {
	Directory   Directory
	Ledger      Appender
	Preferences PreferenceReader
	Pusher      Pusher
	Mailer      Mailer
	// EmailTimeout はメール1通あたりの送信タイムアウト。0の場合は20秒。
	EmailTimeout time.Duration
}

// Orchestrator は通知要求を受信者ごとの配信タスクに展開する。
type Orchestrator struct {
	deps     Dependencies
	inflight sync.WaitGroup
}

// NewOrchestrator は新しいOrchestratorを生成する。
func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.EmailTimeout <= 0 {
		deps.EmailTimeout = 20 * time.Second
	}
	return &Orchestrator{deps: deps}
}

// Notify はセレクタを解決し、受信者ごとに独立したタスクで追記と配信を行い、
// すべてのタスクの完了を待って結果を返す。
// エラーを返すのはセレクタの解決に失敗した場合のみで、受信者ごとの失敗はログと Report に記録する。
func (o *Orchestrator) Notify(ctx context.Context, req Request) (Report, error) {
	start := time.Now()
	defer func() { fanoutDuration.Observe(time.Since(start).Seconds()) }()

	if req.Title == "" || req.Message == "" {
		title, message := event.Render(req.Type, req.Payload)
		if req.Title == "" {
			req.Title = title
		}
		if req.Message == "" {
			req.Message = message
		}
	}

	recipients, err := req.Selector.Resolve(ctx, o.deps.Directory)
	if err != nil {
		return Report{}, err
	}

	outcomes := make([]outcome, len(recipients))
	var wg conc.WaitGroup
	for i, r := range recipients {
		wg.Go(func() {
			outcomes[i] = o.deliver(ctx, req, r)
		})
	}
	if rec := wg.WaitAndRecover(); rec != nil {
		logging.Ctx(ctx).Error().Str("selector", req.Selector.String()).Str("type", string(req.Type)).
			Str("panic", rec.String()).Msg("通知タスクでパニックが発生")
	}

	report := Report{Recipients: len(recipients)}
	for _, oc := range outcomes {
		if oc.persisted {
			report.Persisted++
		}
		if oc.persistFailed {
			report.PersistFailures++
		}
		if oc.pushed {
			report.Pushes++
		}
		report.LiveDeliveries += oc.live
		if oc.emailed {
			report.Emails++
		}
		if oc.emailFailed {
			report.EmailFailures++
		}
	}
	return report, nil
}

// deliver は受信者1人分の「追記 → 設定参照 → プッシュ / メール」を行う。
func (o *Orchestrator) deliver(ctx context.Context, req Request, r Recipient) outcome {
	var oc outcome
	log := logging.Ctx(ctx).With().Str("recipient_id", r.ID).Str("type", string(req.Type)).Logger()

	n, err := o.deps.Ledger.Append(ctx, Entry{
		RecipientID: r.ID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Payload:     req.Payload,
	})
	if err != nil {
		persistFailures.Inc()
		oc.persistFailed = true
		log.Error().Err(&PersistenceError{RecipientID: r.ID, Err: err}).Msg("通知の保存に失敗したため配信を中止")
		return oc
	}
	oc.persisted = true
	log = log.With().Str("notification_id", n.ID).Logger()

	pref, err := o.deps.Preferences.Get(ctx, r.ID)
	if err != nil {
		log.Warn().Err(err).Msg("通知設定の取得に失敗したため配信を中止")
		return oc
	}

	if pref.InAppEnabled && o.deps.Pusher != nil {
		oc.pushed = true
		live, dropped := o.deps.Pusher.Broadcast(realtime.UserKey(r.ID), realtime.Message{Type: "notification", Data: n})
		oc.live = live
		switch {
		case dropped > 0:
			pushes.WithLabelValues("dropped").Inc()
			log.Warn().Str("channel", string(ChannelInApp)).Int("dropped", dropped).Err(&DeliveryError{
				RecipientID:    r.ID,
				NotificationID: n.ID,
				Channel:        ChannelInApp,
				Err:            errSendQueueFull,
			}).Msg("通知のプッシュに失敗")
		case live > 0:
			pushes.WithLabelValues("delivered").Inc()
		default:
			pushes.WithLabelValues("offline").Inc()
			log.Debug().Msg("ライブ接続が無いためプッシュしなかった")
		}
	}

	if pref.EmailEnabled {
		oc.emailed, oc.emailFailed = o.email(ctx, log, r, n)
	}
	return oc
}

// email はメールを1回だけ送信する。宛先が無い場合やメール送信が無効な場合はスキップする。
func (o *Orchestrator) email(ctx context.Context, log zerolog.Logger, r Recipient, n Notification) (sent, failed bool) {
	if o.deps.Mailer == nil || r.Email == "" {
		emails.WithLabelValues("skipped").Inc()
		return false, false
	}

	ctx, cancel := context.WithTimeout(ctx, o.deps.EmailTimeout)
	defer cancel()

	err := o.deps.Mailer.Send(ctx, r.Email, n.Title, n.Message)
	switch {
	case err == nil:
		emails.WithLabelValues("sent").Inc()
		return true, false
	case errors.Is(err, mailer.ErrDisabled):
		emails.WithLabelValues("skipped").Inc()
		return false, false
	default:
		emails.WithLabelValues("failed").Inc()
		log.Warn().Str("channel", string(ChannelEmail)).Err(&DeliveryError{
			RecipientID:    r.ID,
			NotificationID: n.ID,
			Channel:        ChannelEmail,
			Err:            err,
		}).Msg("通知メールの送信に失敗")
		return false, true
	}
}

// Dispatch は通知要求をバックグラウンドで実行する。呼び出し元のキャンセルからは切り離され、
// 結果はログにのみ出力される。HTTPハンドラから使う。
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) {
	ctx = context.WithoutCancel(ctx)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		report, err := o.Notify(ctx, req)
		log := logging.Ctx(ctx)
		if err != nil {
			log.Warn().Err(err).Str("selector", req.Selector.String()).Str("type", string(req.Type)).
				Msg("通知の受信者を解決できなかった")
			return
		}
		log.Info().
			Str("selector", req.Selector.String()).
			Str("type", string(req.Type)).
			Int("recipients", report.Recipients).
			Int("persisted", report.Persisted).
			Int("live", report.LiveDeliveries).
			Int("emails", report.Emails).
			Int("email_failures", report.EmailFailures).
			Msg("通知を配信")
	}()
}

// Wait は実行中の Dispatch がすべて終わるまで待つ。
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}
