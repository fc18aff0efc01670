package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/vaultdesk/internal/biometric"
	"github.com/nao1215/vaultdesk/internal/chatbot"
	"github.com/nao1215/vaultdesk/internal/config"
	"github.com/nao1215/vaultdesk/internal/mailer"
	"github.com/nao1215/vaultdesk/internal/mfa"
	"github.com/nao1215/vaultdesk/internal/notification"
	"github.com/nao1215/vaultdesk/internal/realtime"
	"github.com/nao1215/vaultdesk/internal/stats"
	"github.com/nao1215/vaultdesk/internal/store"
	"github.com/nao1215/vaultdesk/internal/ticket"
	"github.com/nao1215/vaultdesk/internal/user"
	"github.com/nao1215/vaultdesk/internal/vault"
	"github.com/nao1215/vaultdesk/pkg/httpclient"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/thejerf/suture/v4"
)

// App は組み立て済みのアプリケーション。
type App struct {
	cfg          *config.Config
	db           *sqlx.DB
	registry     *realtime.Registry
	orchestrator *notification.Orchestrator
	ledger       *notification.Ledger
	users        *user.Repository
	router       *gin.Engine
}

// New は設定からアプリケーションを組み立てる。データベースを開いてマイグレーションを適用し、
// bootstrap.admin_password が設定されていて管理者がいなければ管理者を作成する。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*App, error) {
	sealer, err := vault.NewSealer(cfg.Vault.AgeIdentity)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		db:       db,
		registry: realtime.NewRegistry(),
		ledger:   notification.NewLedger(db, cfg.Notification.ListLimit, cfg.Notification.MaxListLimit),
		users:    user.NewRepository(db),
	}
	prefs := notification.NewPreferences(db)

	a.orchestrator = notification.NewOrchestrator(notification.Dependencies{
		Directory:    a.users,
		Ledger:       a.ledger,
		Preferences:  prefs,
		Pusher:       a.registry,
		Mailer:       newMailer(cfg.SMTP),
		EmailTimeout: cfg.Notification.EmailTimeout,
	})

	if err := a.bootstrapAdmin(ctx); err != nil {
		return nil, err
	}

	var responder chatbot.Responder = chatbot.KeywordResponder{}
	if cfg.Chatbot.ServiceURL != "" {
		client := httpclient.New(cfg.Chatbot.ServiceURL, httpclient.WithTimeout(cfg.Chatbot.Timeout))
		responder = chatbot.NewRemoteResponder(client, responder)
	}

	a.router = newRouter(cfg, routes{
		ws:           realtime.NewHandler(a.registry, cfg.Auth.JWTSecret, cfg.Realtime.SendBuffer, cfg.Realtime.AllowedOrigins),
		users:        user.NewServer(a.users, a.orchestrator, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		notification: notification.NewServer(a.ledger, prefs, a.orchestrator),
		tickets:      ticket.NewServer(ticket.NewRepository(db), a.orchestrator, a.registry),
		biometric:    biometric.NewServer(biometric.NewLog(db), a.orchestrator),
		vault:        vault.NewServer(vault.NewRepository(db, sealer)),
		chatbot:      chatbot.NewServer(responder, chatbot.NewHistory(db)),
		mfa:          mfa.NewServer(mfa.NewService(db, sealer)),
		stats:        stats.NewReader(db),
	})
	return a, nil
}

// newMailer はSMTP設定からメール送信を組み立てる。ホスト未設定なら送信は常に ErrDisabled になる。
func newMailer(cfg config.SMTPConfig) *mailer.Dispatcher {
	var relay mailer.Relay
	if cfg.Enabled() {
		relay = &mailer.SMTPRelay{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		}
	} else {
		logging.Info().Msg("smtp.host が未設定のためメール通知は無効")
	}
	return mailer.New(relay, mailer.Config{
		From:            cfg.From,
		FromName:        cfg.FromName,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	})
}

func (a *App) bootstrapAdmin(ctx context.Context) error {
	b := a.cfg.Bootstrap
	if b.AdminPassword == "" {
		return nil
	}
	u, created, err := a.users.EnsureAdmin(ctx, user.CreateParams{
		Username: b.AdminUsername,
		Password: b.AdminPassword,
		Name:     b.AdminUsername,
	})
	if errors.Is(err, user.ErrDuplicateUsername) {
		return fmt.Errorf("初期管理者 %q を作成できません。同名の一般ユーザーが存在します: %w", b.AdminUsername, err)
	}
	if err != nil {
		return fmt.Errorf("初期管理者の作成に失敗: %w", err)
	}
	if created {
		logging.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("初期管理者を作成")
	}
	return nil
}

// Handler はHTTPハンドラを返す。
func (a *App) Handler() http.Handler {
	return a.router
}

// Orchestrator は通知オーケストレータを返す。
func (a *App) Orchestrator() *notification.Orchestrator {
	return a.orchestrator
}

// Users はユーザーリポジトリを返す。
func (a *App) Users() *user.Repository {
	return a.users
}

// Run はコンテキストがキャンセルされるまでサービスを実行する。
// 停止時はスーパーバイザーを止め、実行中の通知配信を待ってからデータベースを閉じる。
func (a *App) Run(ctx context.Context) error {
	sup := newSupervisor(a.cfg.Server.ShutdownTimeout)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	sup.Add(newHTTPService(srv, a.cfg.Server.ShutdownTimeout))

	if a.cfg.Notification.RetentionDays > 0 {
		sup.Add(notification.NewRetentionSweeper(a.ledger, a.cfg.Notification.RetentionDays, a.cfg.Notification.SweepInterval))
	}

	logging.Info().Str("addr", srv.Addr).Msg("VaultDeskを起動")
	err := <-sup.ServeBackground(ctx)

	logging.Info().Msg("実行中の通知配信の完了を待機")
	a.orchestrator.Wait()
	if cerr := a.Close(); cerr != nil {
		logging.Error().Err(cerr).Msg("データベースのクローズに失敗")
	}

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logging.Info().Msg("VaultDeskを停止")
		return nil
	}
	if errors.Is(err, suture.ErrTerminateSupervisorTree) {
		return fmt.Errorf("サービスが停止しました: %w", err)
	}
	return err
}

// Close はデータベースを閉じる。
func (a *App) Close() error {
	return a.db.Close()
}
