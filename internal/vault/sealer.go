package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/nao1215/vaultdesk/pkg/logging"
)

// ErrCorrupted は保存された暗号文を復号できないことを表す。
var ErrCorrupted = errors.New("暗号文を復号できません")

// Sealer はageで秘密値を暗号化・復号する。
type Sealer struct {
	identity *age.X25519Identity
}

// NewSealer は AGE-SECRET-KEY-1... 形式の鍵からSealerを生成する。
// 鍵が空の場合は使い捨ての鍵を生成する。その鍵で暗号化した値は再起動後に復号できない。
func NewSealer(identity string) (*Sealer, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		id, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("age鍵の生成に失敗: %w", err)
		}
		logging.Warn().Str("recipient", id.Recipient().String()).
			Msg("vault.age_identity が未設定のため一時鍵を生成した。再起動すると保管庫の値は復号できなくなる")
		return &Sealer{identity: id}, nil
	}
	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("vault.age_identity の解析に失敗: %w", err)
	}
	return &Sealer{identity: id}, nil
}

// Recipient は暗号化に使う公開鍵（age1...）を返す。
func (s *Sealer) Recipient() string {
	return s.identity.Recipient().String()
}

// Seal は平文を暗号化し、アーマー形式の文字列を返す。
func (s *Sealer) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, s.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("age暗号化の開始に失敗: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("平文の書き込みに失敗: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age暗号化の完了に失敗: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("アーマーの書き込みに失敗: %w", err)
	}
	return buf.String(), nil
}

// Open はアーマー形式の暗号文を復号する。
func (s *Sealer) Open(ciphertext string) (string, error) {
	r, err := age.Decrypt(armor.NewReader(strings.NewReader(ciphertext)), s.identity)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return string(b), nil
}
