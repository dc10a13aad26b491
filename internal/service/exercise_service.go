package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// 以下は v1.1.0 で非推奨になった旧プラグイン向けのイベントです
// 処理後、呼び出し元へ非推奨の error イベントを送ります

// SetExercise は課題テキストを保存し、ルームの生徒へ配信します
func (s *ClassroomService) SetExercise(_ context.Context, connID string, req ExerciseRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, room, err := s.hostRoom(connID)
	if err != nil {
		return err
	}
	room.Exercise = req.Content
	s.emit.EmitRoom(room.ID, EventExercise, ContentPayload{Content: req.Content})
	s.deprecated(connID, EventExercise, EventStepsAll)
	return nil
}

func (s *ClassroomService) ExerciseFeedback(_ context.Context, connID string, req ExerciseFeedbackRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.GetRoom(req.RoomID)
	if err != nil {
		return err
	}
	user, err := room.MemberByID(req.UserID)
	if err != nil {
		return memberNotFound(req.UserID, room.ID)
	}
	s.emit.EmitTo(user.ConnID, EventExerciseFeedback, FeedbackPayload{Accepted: *req.Accepted})
	s.deprecated(connID, EventExerciseFeedback, "")
	return nil
}

// ResetExercise は課題テキストを消去し、生徒へリセットを通知します
func (s *ClassroomService) ResetExercise(_ context.Context, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, room, err := s.hostRoom(connID)
	if err != nil {
		return err
	}
	room.Exercise = ""
	s.emit.EmitRoom(room.ID, EventExerciseReset, EmptyPayload{})
	s.deprecated(connID, EventExerciseReset, "")
	return nil
}

// SendSignal は生徒の状態シグナルをホストへ送信します
func (s *ClassroomService) SendSignal(_ context.Context, connID string, req SignalRequest) error {
	if !req.Value.Valid() {
		return &ValidationError{Field: "value", Msg: fmt.Sprintf("is not a valid signal: %s", req.Value)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, room, err := s.callerRoom(connID)
	if err != nil {
		return err
	}
	user.Signal = req.Value
	s.emit.EmitTo(room.Host.ConnID, EventSignal, SignalPayload{UserID: user.ID, Value: req.Value})
	s.deprecated(connID, EventSignal, "")

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID, "sid": connID}).
		Debugf("signal %s sent to host", req.Value)
	return nil
}
