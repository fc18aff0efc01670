package event

import "testing"

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		typ         Type
		data        any
		wantTitle   string
		wantMessage string
	}{
		{
			name:        "チケット作成",
			typ:         TypeTicketCreated,
			data:        TicketCreatedData{TicketID: "t1", Subject: "VPNに接続できない"},
			wantTitle:   "New Support Ticket",
			wantMessage: `A new support ticket has been created: "VPNに接続できない"`,
		},
		{
			name:        "チケット更新",
			typ:         TypeTicketUpdated,
			data:        TicketUpdatedData{TicketID: "t1", Subject: "printer", Status: "resolved"},
			wantTitle:   "Ticket Updated",
			wantMessage: `Ticket "printer" has been updated to status: resolved`,
		},
		{
			name:        "生体認証失敗",
			typ:         TypeBiometricFailure,
			data:        BiometricFailureData{Username: "alice"},
			wantTitle:   "Biometric Access Failed",
			wantMessage: "Failed biometric access attempt detected for user: alice",
		},
		{
			name:        "未定義の種別",
			typ:         Type("unknown"),
			wantTitle:   "Notification",
			wantMessage: "You have a new notification",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			title, msg := Render(tt.typ, MustPayload(tt.data))
			if title != tt.wantTitle {
				t.Errorf("タイトル: got %q, want %q", title, tt.wantTitle)
			}
			if msg != tt.wantMessage {
				t.Errorf("本文: got %q, want %q", msg, tt.wantMessage)
			}
		})
	}
}

func TestTypeValid(t *testing.T) {
	t.Parallel()

	for _, typ := range Types {
		if !typ.Valid() {
			t.Errorf("%s は有効であるべき", typ)
		}
	}
	if Type("ticket_deleted").Valid() {
		t.Error("未定義の種別が有効と判定された")
	}
}

func TestPayload(t *testing.T) {
	t.Parallel()

	t.Run("構造体との相互変換", func(t *testing.T) {
		t.Parallel()
		p, err := NewPayload(BiometricFailureData{UserID: "u1", Username: "bob", IP: "10.0.0.1", Method: "face"})
		if err != nil {
			t.Fatalf("NewPayload エラー: %v", err)
		}
		if p.String("ip") != "10.0.0.1" {
			t.Errorf("ip: got %q", p.String("ip"))
		}
		got, err := Decode[BiometricFailureData](p)
		if err != nil {
			t.Fatalf("Decode エラー: %v", err)
		}
		if got.Username != "bob" || got.Method != "face" {
			t.Errorf("デコード結果: got %+v", got)
		}
	})

	t.Run("オブジェクト以外はエラー", func(t *testing.T) {
		t.Parallel()
		if _, err := NewPayload([]int{1, 2}); err == nil {
			t.Error("配列はエラーになるべき")
		}
	})

	t.Run("MustPayloadはオブジェクト以外でパニックする", func(t *testing.T) {
		t.Parallel()
		defer func() {
			if recover() == nil {
				t.Error("配列でパニックするべき")
			}
		}()
		MustPayload([]int{1, 2})
	})

	t.Run("MustPayloadは構造体をそのまま変換する", func(t *testing.T) {
		t.Parallel()
		p := MustPayload(UserCreatedData{UserID: "u1", Username: "alice"})
		if p.String("username") != "alice" {
			t.Errorf("username: got %q", p.String("username"))
		}
	})

	t.Run("数値フィールドは文字列化される", func(t *testing.T) {
		t.Parallel()
		p := Payload{"ticket_id": float64(7)}
		if got := p.String("ticket_id"); got != "7" {
			t.Errorf("ticket_id: got %q, want 7", got)
		}
	})
}
