package models

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// ErrMemberNotFound はルームに該当メンバーがいない場合のエラーです
var ErrMemberNotFound = errors.New("member not found")

// Room は1つの教室を表します
// ホストは作成時に決まり、ルームが削除されるまで必ずメンバーに含まれます
type Room struct {
	ID   int
	Host *User

	// 以下はホストが設定し、途中参加者にも再送されます
	Settings Settings
	Steps    []Step
	Exercise string // v1.1.0で非推奨

	mu        sync.RWMutex
	members   map[int]*User
	usernames map[string]struct{}
	closing   bool
}

// UserView はスナップショット内のユーザー表現です
type UserView struct {
	ID       int               `json:"id"`
	ConnID   string            `json:"sid"`
	RoomID   int               `json:"room"`
	Name     string            `json:"name"`
	Role     Role              `json:"role"`
	Progress map[string]string `json:"steps"`
}

// RoomSnapshot はホストに送るルームの状態です（オンラインのメンバーのみ）
type RoomSnapshot struct {
	ID    int        `json:"id"`
	Host  int        `json:"host"`
	Users []UserView `json:"users"`
}

// NewRoom はホストを唯一のメンバーとしてルームを作成します
func NewRoom(id int, host *User) *Room {
	r := &Room{
		ID:        id,
		Host:      host,
		Steps:     []Step{},
		members:   make(map[int]*User),
		usernames: make(map[string]struct{}),
	}
	r.AddMember(host)
	return r
}

// AddMember はメンバーを追加し、表示名を予約します
// 名前の重複チェックは呼び出し側の責任です
func (r *Room) AddMember(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[u.ID] = u
	r.usernames[u.Name] = struct{}{}
}

// MemberByID はIDでメンバーを取得します。id 0 は常に見つかりません
func (r *Room) MemberByID(id int) (*User, error) {
	if id == 0 {
		return nil, ErrMemberNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return u, nil
}

// RemoveMember はメンバーを削除し、表示名の予約を解除します
func (r *Room) RemoveMember(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.members[id]
	if !ok {
		return ErrMemberNotFound
	}
	delete(r.members, id)
	delete(r.usernames, u.Name)
	u.RoomID = 0
	return nil
}

// HasUsername は表示名が使用中かどうかを返します
func (r *Room) HasUsername(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.usernames[name]
	return ok
}

// Members はID順のメンバー一覧を返します
func (r *Room) Members() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := lo.Values(r.members)
	slices.SortFunc(out, func(a, b *User) int { return a.ID - b.ID })
	return out
}

// Clients はホスト以外のメンバーを返します
func (r *Room) Clients() []*User {
	return lo.Filter(r.Members(), func(u *User, _ int) bool { return !u.IsHost() })
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// MarkClosing はルームをクローズ処理中にします
func (r *Room) MarkClosing() {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()
}

func (r *Room) Closing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closing
}

// Snapshot はオフラインのメンバーを除いたルームの状態を返します
func (r *Room) Snapshot() RoomSnapshot {
	online := lo.Filter(r.Members(), func(u *User, _ int) bool { return u.Status != StatusOffline })
	return RoomSnapshot{
		ID:   r.ID,
		Host: r.Host.ID,
		Users: lo.Map(online, func(u *User, _ int) UserView {
			return UserView{
				ID:       u.ID,
				ConnID:   u.ConnID,
				RoomID:   u.RoomID,
				Name:     u.Name,
				Role:     u.Role,
				Progress: maps.Clone(u.Progress),
			}
		}),
	}
}
