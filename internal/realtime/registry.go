package realtime

import (
	"sync"

	"github.com/nao1215/vaultdesk/pkg/logging"
)

// AdminGroup は管理者向けブロードキャストのグループタグ。
const AdminGroup = "admins"

// Key はプッシュ先を表すキー。
type Key string

// UserKey はユーザー宛てのキーを返す。
func UserKey(userID string) Key { return Key("user_" + userID) }

// GroupKey はグループ宛てのキーを返す。
func GroupKey(tag string) Key { return Key("group_" + tag) }

// Message はクライアントへ送るフレーム。
type Message struct {
	// Type はフレームの種類（notification, ticket_event, pong など）。
	Type string `json:"type"`
	// Data はフレーム固有のデータ。
	Data any `json:"data,omitempty"`
}

// Endpoint はプッシュを受け取るライブ接続。
type Endpoint interface {
	// ID は接続の一意識別子。
	ID() uint64
	// Deliver はフレームを送信キューに積む。ブロックせず、積めなかった場合は false を返す。
	Deliver(msg Message) bool
}

// Registry は受信者キーとライブ接続の対応表。複数のセッションから並行に操作できる。
type Registry struct {
	mu      sync.RWMutex
	members map[Key]map[uint64]Endpoint
	joined  map[uint64]map[Key]struct{}
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[Key]map[uint64]Endpoint),
		joined:  make(map[uint64]map[Key]struct{}),
	}
}

// Join は接続をユーザー宛てのキーに登録する。識別子の検証は呼び出し側が行う。
func (r *Registry) Join(ep Endpoint, userID string) {
	r.add(ep, UserKey(userID))
}

// JoinGroup は接続をグループ宛てのキーに登録する。
func (r *Registry) JoinGroup(ep Endpoint, tag string) {
	r.add(ep, GroupKey(tag))
}

func (r *Registry) add(ep Endpoint, key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[key]
	if !ok {
		set = make(map[uint64]Endpoint)
		r.members[key] = set
	}
	set[ep.ID()] = ep

	keys, ok := r.joined[ep.ID()]
	if !ok {
		keys = make(map[Key]struct{})
		r.joined[ep.ID()] = keys
	}
	keys[key] = struct{}{}
	connectionsGauge.Set(float64(len(r.joined)))
}

// Leave は接続を参加中のすべてのキーから外す。何度呼んでも良い。
// Leave が戻った後、その接続に Deliver が呼ばれることはない。
func (r *Registry) Leave(ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, ok := r.joined[ep.ID()]
	if !ok {
		return
	}
	for key := range keys {
		set := r.members[key]
		delete(set, ep.ID())
		if len(set) == 0 {
			delete(r.members, key)
		}
	}
	delete(r.joined, ep.ID())
	connectionsGauge.Set(float64(len(r.joined)))
}

// Push はキーに登録されているすべての接続へフレームを送り、受け付けた接続数を返す。
// 接続が無い場合は 0 を返す。確認応答や再送は行わない。
func (r *Registry) Push(key Key, msg Message) int {
	delivered, _ := r.Broadcast(key, msg)
	return delivered
}

// Broadcast は Push と同じく配信し、受け付けた接続数と送信キューが満杯で破棄した接続数を返す。
func (r *Registry) Broadcast(key Key, msg Message) (delivered, dropped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, ep := range r.members[key] {
		if ep.Deliver(msg) {
			delivered++
			continue
		}
		dropped++
		logging.Debug().Uint64("connection_id", id).Str("key", string(key)).Str("type", msg.Type).
			Msg("送信キューが満杯のためフレームを破棄")
	}
	return delivered, dropped
}

// Members はキーに登録されている接続数を返す。
func (r *Registry) Members(key Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[key])
}

// Connections は1つ以上のキーに参加している接続数を返す。
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.joined)
}
