package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/models"
)

// SendToClient はホストから生徒へメッセージを送信します
// メッセージは受信者（生徒）の履歴に追加されます
func (s *ClassroomService) SendToClient(_ context.Context, connID string, req SendMessageRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		return err
	}
	sender, err := s.caller(connID)
	if err != nil {
		return err
	}
	if !sender.IsHost() || room.Host.ID != sender.ID {
		return ErrNotHost
	}
	receiver, err := room.MemberByID(req.UserID)
	if err != nil {
		return memberNotFound(req.UserID, room.ID)
	}
	if receiver.IsHost() {
		return ErrNotClient
	}

	msg := models.NewMessage(sender.ID, receiver.ID, req.Content)
	receiver.Messages = append(receiver.Messages, msg)
	s.emit.EmitTo(receiver.ConnID, EventMessageToClient, MessagePayload{
		UserID:   receiver.ID,
		RoomID:   room.ID,
		Content:  msg.Content,
		Datetime: msg.CreatedAt,
	})

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": sender.ID, "sid": connID}).
		Debugf("message sent to user %d", receiver.ID)
	return nil
}

// SendToMentor は生徒からホストへメッセージを送信します
// メッセージは送信者（生徒）の履歴に追加されます
func (s *ClassroomService) SendToMentor(_ context.Context, connID string, req SendMessageRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		return err
	}
	sender, err := s.caller(connID)
	if err != nil {
		return err
	}
	if _, err := room.MemberByID(sender.ID); err != nil {
		return memberNotFound(sender.ID, room.ID)
	}
	if sender.IsHost() {
		return ErrNotClient
	}

	msg := models.NewMessage(sender.ID, room.Host.ID, req.Content)
	sender.Messages = append(sender.Messages, msg)
	s.emit.EmitTo(room.Host.ConnID, EventMessageToMentor, MessagePayload{
		UserID:   sender.ID,
		RoomID:   room.ID,
		Content:  msg.Content,
		Datetime: msg.CreatedAt,
	})

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": sender.ID, "sid": connID}).
		Debug("message sent to host")
	return nil
}

// UserMessages は生徒1人分のメッセージ履歴をホストへ送信します
func (s *ClassroomService) UserMessages(_ context.Context, connID string, req UserRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, room, err := s.hostRoom(connID)
	if err != nil {
		return err
	}
	user, err := room.MemberByID(req.UserID)
	if err != nil {
		return memberNotFound(req.UserID, room.ID)
	}
	messages := make([]models.Message, len(user.Messages))
	copy(messages, user.Messages)
	s.emit.EmitTo(connID, EventMessageUser, UserMessagesPayload{UserID: user.ID, Messages: messages})
	return nil
}
