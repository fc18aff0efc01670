package event

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Payload は通知に添付する構造化データ。JSONにシリアライズ可能なマップ。
type Payload map[string]any

// NewPayload は構造体などの値をPayloadに変換する。
func NewPayload(data any) (Payload, error) {
	if data == nil {
		return Payload{}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
	}
	p := Payload{}
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("ペイロードはJSONオブジェクトである必要があります: %w", err)
	}
	return p, nil
}

// MustPayload は NewPayload と同じだが、失敗した場合はパニックする。
// JSONオブジェクトになることが分かっている固定の構造体から生成する場合にだけ使う。
func MustPayload(data any) Payload {
	p, err := NewPayload(data)
	if err != nil {
		panic(err)
	}
	return p
}

// Decode はPayloadを指定された型にデシリアライズする。
func Decode[T any](p Payload) (*T, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("ペイロードのデシリアライズに失敗: %w", err)
	}
	return &v, nil
}

// String はペイロードの文字列フィールドを返す。存在しない場合は空文字。
func (p Payload) String(key string) string {
	if v, ok := p[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}
