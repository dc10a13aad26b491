package service

import (
	"maps"
	"math"

	"github.com/samber/lo"

	"github.com/observer-pro/observer-back/internal/models"
)

// StudentStats は生徒1人の進捗率です
type StudentStats struct {
	UserID  int               `json:"user_id"`
	Name    string            `json:"username"`
	Steps   map[string]string `json:"steps"`
	Done    int               `json:"done"`
	Total   int               `json:"total"`
	Percent int               `json:"result"`
}

// RoomStats はルームの進捗統計です
type RoomStats struct {
	RoomID   int            `json:"room_id"`
	Students []StudentStats `json:"students"`
}

// RoomStats は進捗を持つ生徒ごとに DONE / ACCEPTED の割合を集計します
// ルームが無い、または進捗が1件もない場合は ErrRoomNotFound / ErrNoSteps を返します
func (s *ClassroomService) RoomStats(roomID int) (RoomStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.GetRoom(roomID)
	if err != nil {
		return RoomStats{}, err
	}
	students := lo.FilterMap(room.Members(), func(u *models.User, _ int) (StudentStats, bool) {
		if len(u.Progress) == 0 {
			return StudentStats{}, false
		}
		done := lo.CountBy(lo.Values(u.Progress), func(st string) bool {
			return st == models.StepDone || st == models.StepAccepted
		})
		return StudentStats{
			UserID:  u.ID,
			Name:    u.Name,
			Steps:   maps.Clone(u.Progress),
			Done:    done,
			Total:   len(u.Progress),
			Percent: int(math.RoundToEven(float64(done) / float64(len(u.Progress)) * 100)),
		}, true
	})
	if len(students) == 0 {
		return RoomStats{}, ErrNoSteps
	}
	return RoomStats{RoomID: room.ID, Students: students}, nil
}
