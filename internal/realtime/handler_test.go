package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nao1215/vaultdesk/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "realtime-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Registry, *httptest.Server) {
	t.Helper()
	reg := NewRegistry()
	router := gin.New()
	router.GET("/ws", NewHandler(reg, testSecret, 8, nil).Serve())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return reg, srv
}

func dial(t *testing.T, srv *httptest.Server, userID string, isAdmin bool) *websocket.Conn {
	t.Helper()
	tok, err := middleware.GenerateJWT(testSecret, userID, userID, isAdmin, time.Hour)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"type": typ, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(b, &f))
	return f
}

func TestHandler(t *testing.T) {
	t.Parallel()

	t.Run("トークンが無い接続は401", func(t *testing.T) {
		t.Parallel()
		_, srv := newTestServer(t)
		resp, err := http.Get(srv.URL + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("認証後にユーザー宛てのプッシュを受信する", func(t *testing.T) {
		t.Parallel()
		reg, srv := newTestServer(t)
		conn := dial(t, srv, "u1", false)

		send(t, conn, "authenticate", "u1")
		assert.Equal(t, "authenticated", read(t, conn).Type)

		n := reg.Push(UserKey("u1"), Message{Type: "notification", Data: map[string]string{"id": "n1"}})
		assert.Equal(t, 1, n)

		f := read(t, conn)
		assert.Equal(t, "notification", f.Type)
		assert.JSONEq(t, `{"id":"n1"}`, string(f.Data))
	})

	t.Run("トークンと異なる識別子は参加できない", func(t *testing.T) {
		t.Parallel()
		reg, srv := newTestServer(t)
		conn := dial(t, srv, "u1", false)

		send(t, conn, "authenticate", "u2")
		assert.Equal(t, "error", read(t, conn).Type)
		assert.Equal(t, 0, reg.Members(UserKey("u2")))
	})

	t.Run("一般ユーザーは管理者グループに参加できない", func(t *testing.T) {
		t.Parallel()
		reg, srv := newTestServer(t)
		conn := dial(t, srv, "u1", false)

		send(t, conn, "join_group", AdminGroup)
		assert.Equal(t, "error", read(t, conn).Type)
		assert.Equal(t, 0, reg.Members(GroupKey(AdminGroup)))
	})

	t.Run("管理者は管理者グループに参加できる", func(t *testing.T) {
		t.Parallel()
		reg, srv := newTestServer(t)
		conn := dial(t, srv, "admin", true)

		send(t, conn, "join_group", AdminGroup)
		assert.Equal(t, "joined", read(t, conn).Type)
		assert.Equal(t, 1, reg.Members(GroupKey(AdminGroup)))
	})

	t.Run("pingにpongを返す", func(t *testing.T) {
		t.Parallel()
		_, srv := newTestServer(t)
		conn := dial(t, srv, "u1", false)

		send(t, conn, "ping", nil)
		assert.Equal(t, "pong", read(t, conn).Type)
	})

	t.Run("切断するとRegistryから外れる", func(t *testing.T) {
		t.Parallel()
		reg, srv := newTestServer(t)
		conn := dial(t, srv, "u1", false)
		send(t, conn, "authenticate", "u1")
		require.Equal(t, "authenticated", read(t, conn).Type)

		require.NoError(t, conn.Close())

		assert.Eventually(t, func() bool { return reg.Connections() == 0 }, 5*time.Second, 10*time.Millisecond)
	})
}

func TestDecodeID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", decodeID(json.RawMessage(`"abc"`)))
	assert.Equal(t, "42", decodeID(json.RawMessage(`42`)))
	assert.Equal(t, "", decodeID(json.RawMessage(`{"id":1}`)))
	assert.Equal(t, "", decodeID(nil))
}
