package vault

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/nao1215/vaultdesk/internal/store/storetest"
	"github.com/nao1215/vaultdesk/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestVaultFlow(t *testing.T) {
	t.Parallel()

	db := storetest.New(t)
	sealer, err := NewSealer("")
	require.NoError(t, err)
	repo := NewRepository(db, sealer)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		middleware.SetIdentity(c, c.GetHeader("X-User-ID"), "", false)
		c.Next()
	})
	NewServer(repo).RegisterRoutes(api)

	alice := storetest.CreateUser(t, db, storetest.User{})
	bob := storetest.CreateUser(t, db, storetest.User{})

	do := func(method, path, body, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", userID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/api/v1/vault", `{"title":"Mail"}`, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPost, "/api/v1/vault", `{"title":"Mail","username":"alice","password":"hunter2","url":"https://mail.example.com"}`, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	t.Run("DBには暗号文だけが保存される", func(t *testing.T) {
		var secret string
		require.NoError(t, db.Get(&secret, `SELECT secret FROM vault_items WHERE id = ?`, created.ID))
		assert.NotContains(t, secret, "hunter2")
		assert.True(t, strings.HasPrefix(secret, "-----BEGIN AGE ENCRYPTED FILE-----"))
	})

	t.Run("一覧にはパスワードを含めない", func(t *testing.T) {
		w := do(http.MethodGet, "/api/v1/vault", "", alice)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "hunter2")
		var items []Item
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
		assert.Len(t, items, 1)
	})

	t.Run("所有者は復号済みの値を取得できる", func(t *testing.T) {
		w := do(http.MethodGet, "/api/v1/vault/"+created.ID, "", alice)
		require.Equal(t, http.StatusOK, w.Code)
		var got Item
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "hunter2", got.Password)
	})

	t.Run("他人のアイテムは404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/v1/vault/"+created.ID, "", bob).Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodPut, "/api/v1/vault/"+created.ID, `{"title":"x"}`, bob).Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/api/v1/vault/"+created.ID, "", bob).Code)
	})

	t.Run("パスワード未指定の更新は既存の値を残す", func(t *testing.T) {
		w := do(http.MethodPut, "/api/v1/vault/"+created.ID, `{"title":"Webmail","username":"alice"}`, alice)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got, err := repo.Get(context.Background(), created.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, "Webmail", got.Title)
		assert.Equal(t, "hunter2", got.Password)
	})

	t.Run("パスワードを更新できる", func(t *testing.T) {
		w := do(http.MethodPut, "/api/v1/vault/"+created.ID, `{"title":"Webmail","password":"correct-horse"}`, alice)
		require.Equal(t, http.StatusOK, w.Code)
		got, err := repo.Get(context.Background(), created.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, "correct-horse", got.Password)
	})

	t.Run("削除できる", func(t *testing.T) {
		require.Equal(t, http.StatusOK, do(http.MethodDelete, "/api/v1/vault/"+created.ID, "", alice).Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/v1/vault/"+created.ID, "", alice).Code)
	})
}
