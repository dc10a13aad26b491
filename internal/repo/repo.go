// Package repo はユーザー・ルームのレジストリとインポートキャッシュを提供します
package repo

import (
	"errors"

	"github.com/observer-pro/observer-back/internal/models"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrConnectionInUse = errors.New("connection already bound to another user")
	ErrEmptyConnection = errors.New("empty connection id")
)

// UserRepo は接続IDをキーにユーザーを管理するセッションレジストリです
type UserRepo interface {
	CreateUser(connID, name string, role models.Role, roomID int) *models.User
	GetByConnection(connID string) (*models.User, error)
	// ReplaceConnection は再接続時にユーザーのキーを旧接続IDから新接続IDへ原子的に移します
	ReplaceConnection(oldConnID, newConnID string) (*models.User, error)
	DeleteUser(connID string) error
	ListUsers() []*models.User
}

// RoomRepo はルームIDをキーにルームを管理するルームレジストリです
type RoomRepo interface {
	CreateRoom(host *models.User) *models.Room
	GetRoom(id int) (*models.Room, error)
	// DeleteRoom はルームと全メンバーのユーザーをまとめて削除します
	DeleteRoom(id int) error
	ListRooms() []*models.Room
	Summary() Summary
}

// RoomSummary は診断用のルーム単位の集計です
type RoomSummary struct {
	RoomID     int `json:"room_id"`
	UsersCount int `json:"users_count"`
	HostID     int `json:"host_id"`
}

// Summary は診断用の全体集計です
type Summary struct {
	TotalRooms int           `json:"total_rooms_count"`
	Rooms      []RoomSummary `json:"rooms"`
}
