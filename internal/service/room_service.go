package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/idgen"
	"github.com/observer-pro/observer-back/internal/models"
	"github.com/observer-pro/observer-back/internal/repo"
)

// RoomLog は room/log イベントと診断APIのレスポンスです
type RoomLog struct {
	repo.Summary
	Users []string `json:"users"`
}

// CreateRoom はホストユーザーとルームを作成し、ホストへルーム状態を送信します
func (s *ClassroomService) CreateRoom(_ context.Context, connID string, req CreateRoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, err := s.caller(connID); err == nil && u.InRoom() {
		return fmt.Errorf("user %d in room %d: %w", u.ID, u.RoomID, ErrAlreadyInRoom)
	}

	host := s.users.CreateUser(connID, req.Name, models.RoleHost, 0)
	room := s.rooms.CreateRoom(host)
	s.sendSnapshot(room)
	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": host.ID, "sid": connID}).
		Info("room created")
	return nil
}

// JoinRoom は生徒をルームに参加させます
// 処理の流れ:
// 1. ルームの存在確認と二重参加のチェック
// 2. 表示名の決定（未指定ならゲスト名）と重複チェック
// 3. ユーザー作成・メンバー追加・グループ登録
// 4. 参加通知と既存コンテンツ（exercise / steps / settings）の再送
// 5. ホストへルーム状態を送信
func (s *ClassroomService) JoinRoom(_ context.Context, connID string, req JoinRoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		return err
	}
	if room.Closing() {
		return fmt.Errorf("room %d: %w", room.ID, ErrRoomClosing)
	}
	if u, err := s.caller(connID); err == nil && u.InRoom() {
		return fmt.Errorf("user %d already in room %d: %w", u.ID, u.RoomID, ErrAlreadyInRoom)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		if name, err = idgen.NewGuestName(); err != nil {
			return err
		}
	}
	if room.HasUsername(name) {
		msg := fmt.Sprintf("Username %s is already used in room %d!", name, room.ID)
		s.alert(connID, msg, AlertError)
		return fmt.Errorf("%w: %s", ErrUsernameTaken, msg)
	}

	user := s.users.CreateUser(connID, name, models.RoleClient, room.ID)
	room.AddMember(user)
	s.emit.JoinGroup(connID, room.ID)

	s.emit.EmitTo(connID, EventRoomJoin, JoinPayload{UserID: user.ID, RoomID: room.ID})
	if room.Exercise != "" {
		s.emit.EmitTo(connID, EventExercise, ContentPayload{Content: room.Exercise})
	}
	if len(room.Steps) > 0 {
		s.emit.EmitTo(connID, EventStepsAll, room.Steps)
	}
	if !room.Settings.IsZero() {
		s.emit.EmitTo(connID, EventSettings, room.Settings)
	}
	if s.outdated(req.Version) {
		s.alert(connID, "You have an outdated version of the plugin. Please update it!", AlertWarning)
	}
	s.sendSnapshot(room)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID, "sid": connID}).
		Info("user joined room")
	return nil
}

// LeaveRoom は生徒をルームから退出させ、ユーザーを削除します
func (s *ClassroomService) LeaveRoom(_ context.Context, connID string, req RoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		return err
	}
	user, err := s.caller(connID)
	if err != nil {
		return err
	}
	if user.IsHost() {
		return ErrHostCannotLeave
	}
	if err := room.RemoveMember(user.ID); err != nil {
		return memberNotFound(user.ID, room.ID)
	}
	s.stopTimer(user.ID)
	s.emit.LeaveGroup(connID, room.ID)
	if err := s.users.DeleteUser(connID); err != nil {
		return err
	}
	s.sendSnapshot(room)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID, "sid": connID}).
		Info("user left room")
	return nil
}

// Rejoin は生徒の再接続です
func (s *ClassroomService) Rejoin(_ context.Context, connID string, req ReconnectRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, user, err := s.reconnect(connID, req, models.RoleClient)
	if err != nil {
		return err
	}
	s.emit.JoinGroup(connID, room.ID)
	s.emit.EmitTo(connID, EventRoomJoin, JoinPayload{UserID: user.ID, RoomID: room.ID})
	s.sendSnapshot(room)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID, "sid": connID}).
		Info("user reconnected")
	return nil
}

// Rehost はホストの再接続です
// 生徒へ再接続を通知し、画面共有を終了させ、取り込み済みのステップをホストへ戻します
func (s *ClassroomService) Rehost(_ context.Context, connID string, req ReconnectRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, host, err := s.reconnect(connID, req, models.RoleHost)
	if err != nil {
		return err
	}
	s.emit.EmitRoom(room.ID, EventMessage, NoticePayload{Message: "The teacher reconnected!"})
	s.emit.EmitRoom(room.ID, EventSharingEnd, EmptyPayload{})
	if len(room.Steps) > 0 {
		s.emit.EmitTo(connID, EventStepsLoad, room.Steps)
	}
	s.sendSnapshot(room)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": host.ID, "sid": connID}).
		Info("host reconnected")
	return nil
}

// reconnect はメンバーを永続IDで探し、接続IDを付け替えてオンラインに戻します
func (s *ClassroomService) reconnect(connID string, req ReconnectRequest, role models.Role) (*models.Room, *models.User, error) {
	room, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Closing() {
		return nil, nil, fmt.Errorf("room %d: %w", room.ID, ErrRoomClosing)
	}
	member, err := room.MemberByID(req.UserID)
	if err != nil {
		return nil, nil, memberNotFound(req.UserID, room.ID)
	}
	if member.Role != role {
		if role == models.RoleHost {
			return nil, nil, ErrNotHost
		}
		return nil, nil, ErrNotClient
	}
	oldConnID := member.ConnID
	user, err := s.users.ReplaceConnection(oldConnID, connID)
	if err != nil {
		return nil, nil, fmt.Errorf("can't change connection of user %d: %w", member.ID, err)
	}
	if oldConnID != connID {
		s.emit.LeaveGroup(oldConnID, room.ID)
	}
	user.Status = models.StatusOnline
	s.stopTimer(user.ID)
	return room, user, nil
}

// CloseRoom はルームをクローズ中にし、猶予時間の後に削除します
// 猶予時間中も他のルームの処理はブロックされません
func (s *ClassroomService) CloseRoom(_ context.Context, connID string, req RoomRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.caller(connID)
	if err != nil {
		return err
	}
	if !user.IsHost() {
		return ErrNotHost
	}
	room, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		return err
	}
	if room.Host.ID != user.ID {
		return ErrNotHost
	}
	if room.Closing() {
		return fmt.Errorf("room %d: %w", room.ID, ErrRoomClosing)
	}

	room.MarkClosing()
	s.emit.EmitRoom(room.ID, EventRoomClosed, NoticePayload{Message: "Room closed!"})
	roomID := room.ID
	s.closes[roomID] = time.AfterFunc(s.opts.CloseGrace, func() { s.teardown(roomID) })

	s.log.WithFields(logrus.Fields{"room_id": roomID, "user_id": user.ID, "sid": connID}).
		Info("room closing")
	return nil
}

// teardown はルームを削除し、全メンバーをセッションレジストリから削除します
func (s *ClassroomService) teardown(roomID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.closes, roomID)
	room, err := s.rooms.GetRoom(roomID)
	if err != nil {
		s.log.WithField("room_id", roomID).WithError(err).Warn("room already deleted")
		return
	}
	for _, m := range room.Members() {
		s.stopTimer(m.ID)
	}
	s.emit.CloseGroup(roomID)
	if err := s.rooms.DeleteRoom(roomID); err != nil {
		s.log.WithField("room_id", roomID).WithError(err).Error("failed to delete room")
		return
	}
	s.log.WithField("room_id", roomID).Info("room closed")
}

// KillUser はホストが生徒を強制的に退出・切断させます
func (s *ClassroomService) KillUser(_ context.Context, connID string, req KillRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, room, err := s.hostRoom(connID)
	if err != nil {
		return err
	}
	target, err := room.MemberByID(req.UserID)
	if err != nil {
		return memberNotFound(req.UserID, room.ID)
	}
	if target.IsHost() {
		return ErrNotClient
	}
	targetConn := target.ConnID
	_ = room.RemoveMember(target.ID)
	s.stopTimer(target.ID)
	s.emit.LeaveGroup(targetConn, room.ID)
	if err := s.users.DeleteUser(targetConn); err != nil && !errors.Is(err, repo.ErrUserNotFound) {
		return err
	}
	s.sendSnapshot(room)
	s.emit.Disconnect(targetConn)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": target.ID, "sid": connID}).
		Info("user killed by host")
	return nil
}

// Disconnect はトランスポートの切断通知を処理します
// ルームに参加していない接続の切断は正常なケースです
func (s *ClassroomService) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.caller(connID)
	if err != nil {
		return
	}
	logger := s.log.WithFields(logrus.Fields{"user_id": user.ID, "sid": connID})
	if !user.InRoom() {
		_ = s.users.DeleteUser(connID)
		return
	}
	room, err := s.rooms.GetRoom(user.RoomID)
	if err != nil {
		logger.WithError(err).Warn("disconnected user has no room")
		_ = s.users.DeleteUser(connID)
		return
	}
	logger = logger.WithField("room_id", room.ID)
	user.Status = models.StatusOffline

	if user.IsHost() {
		s.emit.EmitRoom(room.ID, EventMessage, NoticePayload{Message: "The teacher is offline!"})
		logger.Info("host disconnected")
		return
	}

	s.emit.LeaveGroup(connID, room.ID)
	if s.opts.ReconnectGrace <= 0 {
		s.removeOffline(room, user)
		logger.Info("student disconnected and removed")
		return
	}
	s.sendSnapshot(room)
	userID, roomID := user.ID, room.ID
	s.stopTimer(userID)
	s.timers[userID] = time.AfterFunc(s.opts.ReconnectGrace, func() { s.expire(roomID, userID, connID) })
	logger.Info("student disconnected")
}

// expire は再接続待ちの猶予が切れた生徒をルームから削除します
func (s *ClassroomService) expire(roomID, userID int, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.timers, userID)
	room, err := s.rooms.GetRoom(roomID)
	if err != nil {
		return
	}
	user, err := room.MemberByID(userID)
	if err != nil || user.Status != models.StatusOffline || user.ConnID != connID {
		return
	}
	s.removeOffline(room, user)
	s.log.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).Info("reconnect window expired")
}

func (s *ClassroomService) removeOffline(room *models.Room, user *models.User) {
	connID := user.ConnID
	_ = room.RemoveMember(user.ID)
	_ = s.users.DeleteUser(connID)
	s.sendSnapshot(room)
}

// RoomsLog は全ルームとユーザーの診断情報を返します
func (s *ClassroomService) RoomsLog() RoomLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := RoomLog{Summary: s.rooms.Summary(), Users: []string{}}
	for _, u := range s.users.ListUsers() {
		log.Users = append(log.Users, fmt.Sprintf("Room %d: %s, %s", u.RoomID, u.Name, strings.ToUpper(string(u.Status))))
	}
	return log
}

// SendRoomsLog は診断情報を呼び出し元へ送信します
func (s *ClassroomService) SendRoomsLog(_ context.Context, connID string) error {
	s.emit.EmitTo(connID, EventRoomLog, s.RoomsLog())
	return nil
}
