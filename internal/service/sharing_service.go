package service

import (
	"context"
	"maps"
)

// StartSharing は生徒1人に画面共有の開始を依頼し、他の生徒の共有を終了させます
func (s *ClassroomService) StartSharing(_ context.Context, connID string, req SharingStartRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		return err
	}
	if host, err := s.caller(connID); err != nil || host.ID != room.Host.ID {
		return ErrNotHost
	}
	user, err := room.MemberByID(req.UserID)
	if err != nil {
		return memberNotFound(req.UserID, room.ID)
	}
	s.emit.EmitRoom(room.ID, EventSharingEnd, EmptyPayload{}, user.ConnID)
	s.emit.EmitTo(user.ConnID, EventSharingStart, EmptyPayload{})
	return nil
}

// ForwardCode は生徒のコードを user_id を付けてホストへ転送します
// event は sharing/code_send か sharing/code_update です
func (s *ClassroomService) ForwardCode(_ context.Context, connID, event string, req SharingCodeRequest) error {
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
	if _, err := room.MemberByID(user.ID); err != nil {
		return memberNotFound(user.ID, room.ID)
	}
	data := maps.Clone(req.Data)
	if data == nil {
		data = map[string]any{}
	}
	data["room_id"] = room.ID
	data["user_id"] = user.ID
	s.emit.EmitTo(room.Host.ConnID, event, data)
	return nil
}

// EndSharing は v1.2.13 で非推奨になりました
func (s *ClassroomService) EndSharing(_ context.Context, connID string) error {
	s.deprecated(connID, EventSharingEnd, "")
	return nil
}
