package service

import "github.com/observer-pro/observer-back/internal/models"

// 受信ペイロード。validate タグはトランスポート境界で検証されます

type CreateRoomRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

type JoinRoomRequest struct {
	RoomID  int    `json:"room_id" validate:"required"`
	Name    string `json:"name" validate:"max=64"`
	Version string `json:"version"`
}

type RoomRequest struct {
	RoomID int `json:"room_id" validate:"required"`
}

type ReconnectRequest struct {
	RoomID int `json:"room_id" validate:"required"`
	UserID int `json:"user_id" validate:"required"`
}

type KillRequest struct {
	UserID int `json:"user_id" validate:"required"`
}

type SendMessageRequest struct {
	RoomID  int    `json:"room_id" validate:"required"`
	UserID  int    `json:"user_id"`
	Content string `json:"content"`
}

type UserRequest struct {
	UserID int `json:"user_id" validate:"required"`
}

type StepsAllRequest []models.Step

type StepStatusToClientRequest struct {
	UserID int               `json:"user_id" validate:"required"`
	Steps  map[string]string `json:"steps" validate:"required"`
}

type StepStatusToMentorRequest map[string]string

type StepsImportRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type ExerciseRequest struct {
	Content string `json:"content"`
}

type ExerciseFeedbackRequest struct {
	RoomID   int   `json:"room_id" validate:"required"`
	UserID   int   `json:"user_id" validate:"required"`
	Accepted *bool `json:"accepted" validate:"required"`
}

type SignalRequest struct {
	UserID int           `json:"user_id" validate:"required"`
	Value  models.Signal `json:"value" validate:"required"`
}

type SharingStartRequest struct {
	RoomID int `json:"room_id" validate:"required"`
	UserID int `json:"user_id" validate:"required"`
}

// SharingCodeRequest はコード共有イベントです。RoomID 以外のフィールドはそのままホストへ転送されます
type SharingCodeRequest struct {
	RoomID int            `json:"room_id" validate:"required"`
	Data   map[string]any `json:"-"`
}

type SettingsRequest struct {
	FilesToIgnore string `json:"files_to_ignore"`
}

type SolutionRequest struct {
	Content string `json:"content" validate:"required"`
	Code    string `json:"code" validate:"required"`
}
