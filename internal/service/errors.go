package service

import (
	"errors"
	"fmt"

	"github.com/observer-pro/observer-back/internal/models"
	"github.com/observer-pro/observer-back/internal/repo"
)

// カスタムエラー定義
var (
	ErrRoomNotFound    = repo.ErrRoomNotFound
	ErrUserNotFound    = repo.ErrUserNotFound
	ErrMemberNotFound  = models.ErrMemberNotFound
	ErrAlreadyInRoom   = errors.New("user already in a room")
	ErrNotInRoom       = errors.New("user is not in a room")
	ErrUsernameTaken   = errors.New("username is already used")
	ErrNotHost         = errors.New("forbidden: not room host")
	ErrNotClient       = errors.New("forbidden: not a student")
	ErrHostCannotLeave = errors.New("host cannot leave the room, close it instead")
	ErrRoomClosing     = errors.New("room is closing")
	ErrNoSteps         = errors.New("no tasks found on the page")
	ErrAssistantOff    = errors.New("assistant is not configured")
)

// ValidationError はペイロードの形式が不正な場合のエラーです
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s %s", e.Field, e.Msg)
}

// UpstreamError は外部サービス（Notion、AIアシスタント）の呼び出しに失敗した場合のエラーです
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func memberNotFound(userID, roomID int) error {
	return fmt.Errorf("user %d in room %d: %w", userID, roomID, ErrMemberNotFound)
}
