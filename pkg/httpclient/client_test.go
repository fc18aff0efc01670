package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("既定のタイムアウトは30秒", func(t *testing.T) {
		t.Parallel()
		c := New("http://localhost:5000")
		assert.Equal(t, "http://localhost:5000", c.baseURL)
		assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	})

	t.Run("WithTimeoutで上書きできる", func(t *testing.T) {
		t.Parallel()
		c := New("http://localhost:5000", WithTimeout(2*time.Second))
		assert.Equal(t, 2*time.Second, c.httpClient.Timeout)
	})

	t.Run("0以下のタイムアウトは無視する", func(t *testing.T) {
		t.Parallel()
		c := New("http://localhost:5000", WithTimeout(0))
		assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	})
}

func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("ボディとヘッダーを送りレスポンスを読み取る", func(t *testing.T) {
		t.Parallel()

		var (
			gotMethod, gotPath string
			gotBody            []byte
			gotHeader          http.Header
		)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath, gotHeader = r.Method, r.URL.Path, r.Header
			gotBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 200})
		}))
		defer ts.Close()

		ctx := logging.WithRequestID(context.Background(), "req-1")
		ctx = WithUserID(ctx, "user-1")

		var result testPayload
		err := New(ts.URL).PostJSON(ctx, "/chat", testPayload{Name: "request", Value: 100}, &result)
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/chat", gotPath)
		assert.JSONEq(t, `{"name":"request","value":100}`, string(gotBody))
		assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
		assert.Equal(t, "req-1", gotHeader.Get("X-Request-ID"))
		assert.Equal(t, "user-1", gotHeader.Get("X-User-ID"))
		assert.Equal(t, testPayload{Name: "response", Value: 200}, result)
	})

	t.Run("resultがnilならボディを読まない", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`not json`))
		}))
		defer ts.Close()

		assert.NoError(t, New(ts.URL).PostJSON(context.Background(), "/x", testPayload{}, nil))
	})

	t.Run("キャンセル済みコンテキストはエラー", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, New(ts.URL).PostJSON(ctx, "/x", testPayload{}, nil))
	})
}

func TestGetJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus int
		want       testPayload
	}{
		{name: "正常応答", status: http.StatusOK, body: `{"name":"ok","value":42}`, want: testPayload{Name: "ok", Value: 42}},
		{name: "404はStatusError", status: http.StatusNotFound, body: `{"error":"not found"}`, wantErr: true, wantStatus: http.StatusNotFound},
		{name: "500はStatusError", status: http.StatusInternalServerError, body: `boom`, wantErr: true, wantStatus: http.StatusInternalServerError},
		{name: "不正なJSONはエラー", status: http.StatusOK, body: `{invalid`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotBody []byte
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotBody, _ = io.ReadAll(r.Body)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			var result testPayload
			err := New(ts.URL).GetJSON(context.Background(), "/health", &result)
			assert.Empty(t, gotBody)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, result)
				return
			}
			require.Error(t, err)
			if tt.wantStatus != 0 {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantStatus, se.StatusCode)
				assert.Equal(t, tt.body, se.Body)
			}
		})
	}
}
