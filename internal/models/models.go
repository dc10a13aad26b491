// Package models はアプリケーションで使用するデータ構造を定義します
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role はルーム内でのユーザーの役割です
type Role string

const (
	RoleHost   Role = "host"   // ルーム作成者（教師）
	RoleClient Role = "client" // 参加者（生徒）
)

// Status は接続状態です
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// ステップ進捗のステータス
const (
	StepNone       = "NONE"
	StepInProgress = "IN_PROGRESS"
	StepHelp       = "HELP"
	StepDone       = "DONE"
	StepAccepted   = "ACCEPTED"
)

// Signal は旧バージョンのプラグインが送る状態シグナルです（v1.1.0で非推奨）
type Signal string

const (
	SignalNone       Signal = "NONE"
	SignalInProgress Signal = "IN_PROGRESS"
	SignalHelp       Signal = "HELP"
	SignalDone       Signal = "DONE"
)

// Valid は既知のシグナル値かどうかを返します
func (s Signal) Valid() bool {
	switch s {
	case SignalNone, SignalInProgress, SignalHelp, SignalDone:
		return true
	}
	return false
}

// User はルームに参加するユーザーの情報を表します
// ConnID は再接続のたびに変わり、ID は再接続をまたいで不変です
type User struct {
	ID       int               // 永続ID（セッションレジストリが採番）
	ConnID   string            // 現在の接続ID
	Name     string            // 表示名（ルーム内で一意）
	Role     Role              // host / client
	RoomID   int               // 所属ルーム（0 は未所属）
	Status   Status            // online / offline
	Progress map[string]string // ステップ名 -> ステータス
	Messages []Message         // 生徒本人が所有するメッセージ履歴
	Signal   Signal            // 非推奨
}

// NewUser は新しいUserを作成します
func NewUser(id int, connID, name string, role Role, roomID int) *User {
	return &User{
		ID:       id,
		ConnID:   connID,
		Name:     name,
		Role:     role,
		RoomID:   roomID,
		Status:   StatusOnline,
		Progress: make(map[string]string),
		Signal:   SignalNone,
	}
}

func (u *User) IsHost() bool { return u.Role == RoleHost }

func (u *User) InRoom() bool { return u.RoomID != 0 }

// Message はホストと生徒の間でやり取りされるメッセージです
// 作成後は変更されません
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   int       `json:"sender"`
	ReceiverID int       `json:"receiver"`
	Content    string    `json:"content"`
	Status     *string   `json:"status"` // 予約（既読などに使う予定）
	CreatedAt  string    `json:"created_at"`
}

// NewMessage は作成時刻（UTC、HH:MM:SS）付きのメッセージを作成します
func NewMessage(senderID, receiverID int, content string) Message {
	return Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC().Format(time.TimeOnly),
	}
}

// Step は課題・コンテンツの1ブロックです
type Step struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Type     string `json:"type"`
}

// Settings はホストが設定する無視パターンです
type Settings struct {
	Names      []string `json:"names"`
	Dirs       []string `json:"dirs"`
	Extensions []string `json:"extensions"`
}

// IsZero は何も設定されていないかどうかを返します
func (s Settings) IsZero() bool {
	return len(s.Names) == 0 && len(s.Dirs) == 0 && len(s.Extensions) == 0
}
