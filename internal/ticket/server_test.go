package ticket

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/vaultdesk/internal/notification"
	"github.com/nao1215/vaultdesk/internal/realtime"
	"github.com/nao1215/vaultdesk/internal/store/storetest"
	"github.com/nao1215/vaultdesk/pkg/event"
	"github.com/nao1215/vaultdesk/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingNotifier struct {
	mu   sync.Mutex
	reqs []notification.Request
}

func (n *recordingNotifier) Dispatch(_ context.Context, req notification.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reqs = append(n.reqs, req)
}

type recordingPusher struct {
	mu   sync.Mutex
	keys []realtime.Key
	msgs []realtime.Message
}

func (p *recordingPusher) Push(key realtime.Key, msg realtime.Message) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, msg)
	return 0
}

type testEnv struct {
	db       *sqlx.DB
	notifier *recordingNotifier
	pusher   *recordingPusher
	router   *gin.Engine
}

// setupTestServer はヘッダーで認証情報を設定するテスト用サーバーを構築する。
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       storetest.New(t),
		notifier: &recordingNotifier{},
		pusher:   &recordingPusher{},
		router:   gin.New(),
	}
	s := NewServer(NewRepository(env.db), env.notifier, env.pusher)

	api := env.router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-User-ID"); id != "" {
			middleware.SetIdentity(c, id, c.GetHeader("X-Username"), c.GetHeader("X-Admin") == "true")
		}
		c.Next()
	})
	s.RegisterRoutes(api)
	return env
}

func (e *testEnv) do(method, path, body, userID string, admin bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("X-Username", "alice")
	if admin {
		req.Header.Set("X-Admin", "true")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestTicketFlow(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	alice := storetest.CreateUser(t, env.db, storetest.User{Username: "alice"})
	bob := storetest.CreateUser(t, env.db, storetest.User{Username: "bob"})
	admin := storetest.CreateUser(t, env.db, storetest.User{Username: "root", IsAdmin: true})

	var created Ticket
	t.Run("作成すると全管理者へ通知し管理者グループへプッシュする", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/tickets", `{"subject":"VPN","description":"down","priority":"high"}`, alice, false)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

		require.Len(t, env.notifier.reqs, 1)
		req := env.notifier.reqs[0]
		assert.Equal(t, notification.AllAdmins(), req.Selector)
		assert.Equal(t, event.TypeTicketCreated, req.Type)
		data, err := event.Decode[event.TicketCreatedData](req.Payload)
		require.NoError(t, err)
		assert.Equal(t, event.TicketCreatedData{TicketID: created.ID, Subject: "VPN", Priority: "high", Username: "alice"}, *data)

		assert.Equal(t, []realtime.Key{realtime.GroupKey(realtime.AdminGroup)}, env.pusher.keys)
		assert.Equal(t, "ticket_event", env.pusher.msgs[0].Type)
	})

	t.Run("入力が不正なら400", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/tickets", `{"subject":"x","description":"y","priority":"urgent"}`, alice, false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = env.do(http.MethodPost, "/api/v1/tickets", `{"subject":"x"}`, alice, false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("起票者と管理者だけが参照できる", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/tickets/"+created.ID, "", alice, false).Code)
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/tickets/"+created.ID, "", admin, true).Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/tickets/"+created.ID, "", bob, false).Code)
	})

	t.Run("自分のチケットだけが一覧に出る", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/tickets", "", bob, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("ステータス更新は管理者のみ", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/v1/admin/tickets/"+created.ID+"/status", `{"status":"resolved"}`, alice, false)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("ステータス更新で起票者に通知する", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/v1/admin/tickets/"+created.ID+"/status", `{"status":"resolved"}`, admin, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		require.Len(t, env.notifier.reqs, 2)
		req := env.notifier.reqs[1]
		assert.Equal(t, notification.SingleUser(alice), req.Selector)
		assert.Equal(t, event.TypeTicketUpdated, req.Type)
		assert.Equal(t, "resolved", req.Payload.String("status"))
		assert.Len(t, env.pusher.keys, 2)
	})

	t.Run("不正なステータスは400、存在しないチケットは404", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/v1/admin/tickets/"+created.ID+"/status", `{"status":"done"}`, admin, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = env.do(http.MethodPut, "/api/v1/admin/tickets/missing/status", `{"status":"closed"}`, admin, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("管理者一覧には起票者名が付く", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/admin/tickets", "", admin, true)
		require.Equal(t, http.StatusOK, w.Code)
		var all []Ticket
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
		require.Len(t, all, 1)
		assert.Equal(t, "alice", all[0].Username)
	})
}
