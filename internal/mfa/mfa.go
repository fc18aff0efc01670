package mfa

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Issuer は認証アプリに表示する発行者名。
const Issuer = "VaultDesk"

// qrSize はQRコード画像の一辺のピクセル数。
const qrSize = 200

var (
	// ErrNotFound はユーザーが存在しないことを表す。
	ErrNotFound = errors.New("ユーザーが見つかりません")
	// ErrNotConfigured はシークレットが未登録であることを表す。
	ErrNotConfigured = errors.New("MFAが設定されていません")
	// ErrInvalidCode は確認コードが一致しないことを表す。
	ErrInvalidCode = errors.New("確認コードが正しくありません")
)

// Sealer はシークレットを暗号化・復号する。*vault.Sealer が満たす。
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// Enrollment は登録開始時に返す情報。
type Enrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
	// QRCode は data:image/png;base64,... 形式のQRコード。
	QRCode string `json:"qr_code"`
}

// Status はMFAの状態。
type Status struct {
	Enabled bool `json:"enabled"`
	// Pending は登録開始済みで未確認であることを表す。
	Pending bool `json:"pending"`
}

// Service はTOTPの登録と検証を行う。
type Service struct {
	db     *sqlx.DB
	sealer Sealer
	now    func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(db *sqlx.DB, sealer Sealer) *Service {
	return &Service{db: db, sealer: sealer, now: time.Now}
}

type mfaRow struct {
	Username string `db:"username"`
	Secret   string `db:"mfa_secret"`
	Enabled  bool   `db:"mfa_enabled"`
}

func (s *Service) load(ctx context.Context, userID string) (mfaRow, error) {
	var row mfaRow
	err := s.db.GetContext(ctx, &row, `SELECT username, mfa_secret, mfa_enabled FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return mfaRow{}, ErrNotFound
	}
	if err != nil {
		return mfaRow{}, fmt.Errorf("MFA設定の取得に失敗: %w", err)
	}
	return row, nil
}

// Setup は新しいシークレットを発行して保存する。確認コードで Verify するまで有効にならない。
// 既に有効な場合も発行し直し、確認されるまで無効に戻す。
func (s *Service) Setup(ctx context.Context, userID string) (Enrollment, error) {
	row, err := s.load(ctx, userID)
	if err != nil {
		return Enrollment{}, err
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: Issuer, AccountName: row.Username})
	if err != nil {
		return Enrollment{}, fmt.Errorf("TOTPシークレットの生成に失敗: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return Enrollment{}, fmt.Errorf("QRコードの生成に失敗: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Enrollment{}, fmt.Errorf("QRコードのエンコードに失敗: %w", err)
	}

	sealed, err := s.sealer.Seal(key.Secret())
	if err != nil {
		return Enrollment{}, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET mfa_secret = ?, mfa_enabled = 0 WHERE id = ?`, sealed, userID); err != nil {
		return Enrollment{}, fmt.Errorf("MFAシークレットの保存に失敗: %w", err)
	}
	return Enrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// validate は保存済みシークレットで確認コードを検証する。
func (s *Service) validate(row mfaRow, code string) error {
	if row.Secret == "" {
		return ErrNotConfigured
	}
	secret, err := s.sealer.Open(row.Secret)
	if err != nil {
		return err
	}
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrInvalidCode
	}
	return nil
}

// Verify は確認コードを検証し、MFAを有効にする。
func (s *Service) Verify(ctx context.Context, userID, code string) error {
	row, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.validate(row, code); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET mfa_enabled = 1 WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("MFAの有効化に失敗: %w", err)
	}
	return nil
}

// Disable は確認コードを検証し、MFAを無効にしてシークレットを消す。
func (s *Service) Disable(ctx context.Context, userID, code string) error {
	row, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.validate(row, code); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET mfa_secret = '', mfa_enabled = 0 WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("MFAの無効化に失敗: %w", err)
	}
	return nil
}

// Status は現在の状態を返す。
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	row, err := s.load(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return Status{Enabled: row.Enabled, Pending: !row.Enabled && row.Secret != ""}, nil
}
