package realtime

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nao1215/vaultdesk/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var clientIDCounter atomic.Uint64

// Identity はトークンで検証済みのセッション主体。
type Identity struct {
	UserID  string
	IsAdmin bool
}

// inbound はクライアントから受け取るフレーム。
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client は1本のWebSocket接続。Endpoint を実装する。
type Client struct {
	id       uint64
	conn     *websocket.Conn
	registry *Registry
	identity Identity
	send     chan Message
	done     chan struct{}
	once     sync.Once
}

// NewClient は接続をラップしたClientを生成する。
func NewClient(registry *Registry, conn *websocket.Conn, identity Identity, buffer int) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		conn:     conn,
		registry: registry,
		identity: identity,
		send:     make(chan Message, buffer),
		done:     make(chan struct{}),
	}
}

// ID は接続の一意識別子を返す。
func (c *Client) ID() uint64 { return c.id }

// Deliver はフレームを送信キューに積む。接続が閉じているかキューが満杯なら false。
func (c *Client) Deliver(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Serve は読み書きのループを開始し、接続が閉じるまでブロックする。
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// readPump はクライアントからのフレームを処理する。終了時にRegistryから離脱する。
func (c *Client) readPump() {
	defer func() {
		c.registry.Leave(c)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Uint64("connection_id", c.id).Msg("WebSocketが予期せず切断")
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.Deliver(Message{Type: "error", Data: "フレームの形式が不正です"})
			continue
		}
		c.handle(in)
	}
}

// handle はクライアントのフレームに応答する。
func (c *Client) handle(in inbound) {
	switch in.Type {
	case "authenticate":
		declared := decodeID(in.Data)
		if declared == "" || declared != c.identity.UserID {
			logging.Warn().Uint64("connection_id", c.id).Str("user_id", c.identity.UserID).
				Str("declared", declared).Msg("宣言された識別子がトークンと一致しない")
			c.Deliver(Message{Type: "error", Data: "識別子がトークンと一致しません"})
			return
		}
		c.registry.Join(c, declared)
		c.Deliver(Message{Type: "authenticated", Data: map[string]string{"user_id": declared}})
	case "join_group":
		tag := decodeID(in.Data)
		if tag == "" || (tag == AdminGroup && !c.identity.IsAdmin) {
			c.Deliver(Message{Type: "error", Data: "グループに参加する権限がありません"})
			return
		}
		c.registry.JoinGroup(c, tag)
		c.Deliver(Message{Type: "joined", Data: tag})
	case "ping":
		c.Deliver(Message{Type: "pong"})
	default:
		c.Deliver(Message{Type: "error", Data: "未対応のフレーム種別です"})
	}
}

// decodeID は文字列または数値で送られた識別子を文字列にする。
func decodeID(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// writePump は送信キューのフレームとpingを書き出す。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			b, err := json.Marshal(msg)
			if err != nil {
				logging.Error().Err(err).Str("type", msg.Type).Msg("フレームのシリアライズに失敗")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
