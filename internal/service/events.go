package service

import "github.com/observer-pro/observer-back/internal/models"

// 受信・送信イベント名
const (
	EventRoomCreate = "room/create"
	EventRoomJoin   = "room/join"
	EventRoomLeave  = "room/leave"
	EventRoomRejoin = "room/rejoin"
	EventRoomRehost = "room/rehost"
	EventRoomClose  = "room/close"
	EventRoomKill   = "room/kill"
	EventRoomLog    = "room/log"
	EventRoomUpdate = "room/update"
	EventRoomClosed = "room/closed"

	EventMessageToClient = "message/to_client"
	EventMessageToMentor = "message/to_mentor"
	EventMessageUser     = "message/user"
	EventMessage         = "message"

	EventStepsAll            = "steps/all"
	EventStepsStatusToClient = "steps/status/to_client"
	EventStepsStatusToMentor = "steps/status/to_mentor"
	EventStepsTable          = "steps/table"
	EventStepsImport         = "steps/import"
	EventStepsLoad           = "steps/load"

	// v1.1.0で非推奨
	EventExercise         = "exercise"
	EventExerciseFeedback = "exercise/feedback"
	EventExerciseReset    = "exercise/reset"
	EventSignal           = "signal"

	EventSharingStart      = "sharing/start"
	EventSharingEnd        = "sharing/end"
	EventSharingCodeSend   = "sharing/code_send"
	EventSharingCodeUpdate = "sharing/code_update"

	EventSettings   = "settings"
	EventSolutionAI = "solution/ai"
	EventAlerts     = "alerts"
	EventError      = "error"
	EventLog        = "log"
)

// アラートの種類
const (
	AlertSuccess = "SUCCESS"
	AlertWarning = "WARNING"
	AlertError   = "ERROR"
)

// Emitter はイベントの送信先（トランスポート層）を抽象化します
// 実装はブロックしてはいけません
type Emitter interface {
	EmitTo(connID, event string, payload any)
	// EmitRoom はルームのグループに参加している接続へ送信します（skip の接続は除く）
	EmitRoom(roomID int, event string, payload any, skip ...string)
	Broadcast(event string, payload any)
	JoinGroup(connID string, roomID int)
	LeaveGroup(connID string, roomID int)
	CloseGroup(roomID int)
	Disconnect(connID string)
}

// 送信ペイロード

type JoinPayload struct {
	UserID int `json:"user_id"`
	RoomID int `json:"room_id"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

type AlertPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorPayload は error イベントのペイロードです
type ErrorPayload struct {
	Message string `json:"message"`
}

type EmptyPayload struct{}

type MessagePayload struct {
	UserID   int    `json:"user_id"`
	RoomID   int    `json:"room_id"`
	Content  string `json:"content"`
	Datetime string `json:"datetime"`
}

type UserMessagesPayload struct {
	UserID   int              `json:"user_id"`
	Messages []models.Message `json:"messages"`
}

type UserStepsPayload struct {
	UserID int               `json:"user_id"`
	Steps  map[string]string `json:"steps"`
}

type ContentPayload struct {
	Content string `json:"content"`
}

type FeedbackPayload struct {
	Accepted bool `json:"accepted"`
}

type SignalPayload struct {
	UserID int           `json:"user_id"`
	Value  models.Signal `json:"value"`
}
