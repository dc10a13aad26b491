package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/models"
)

// 配信できるステップ名（"1"〜"16" と "theory"）
var stepNames = func() map[string]struct{} {
	names := map[string]struct{}{"theory": {}}
	for i := 1; i <= 16; i++ {
		names[strconv.Itoa(i)] = struct{}{}
	}
	return names
}()

// cleanSteps は内容が空、または名前が範囲外のステップを取り除きます
func cleanSteps(steps []models.Step) []models.Step {
	return lo.Filter(steps, func(st models.Step, _ int) bool {
		_, ok := stepNames[st.Name]
		return ok && strings.TrimSpace(st.Content) != ""
	})
}

// SetSteps はホストが設定したステップを保存し、ルームの生徒へ配信します
func (s *ClassroomService) SetSteps(_ context.Context, connID string, req StepsAllRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, room, err := s.hostRoom(connID)
	if err != nil {
		return err
	}
	steps := cleanSteps(req)
	room.Steps = steps
	s.emit.EmitRoom(room.ID, EventStepsAll, steps)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": host.ID, "sid": connID}).
		Debugf("%d steps sent to room", len(steps))
	return nil
}

// StatusToClient はホストが生徒1人の進捗を更新します
// 生徒の進捗が空なら置き換え、そうでなければ既存のキーのみ上書きします
// DONE -> NONE は却下、ACCEPTED への変化は承認としてアラートを送ります
func (s *ClassroomService) StatusToClient(_ context.Context, connID string, req StepStatusToClientRequest) error {
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

	if len(user.Progress) == 0 {
		user.Progress = maps.Clone(req.Steps)
	} else {
		for _, step := range slices.Sorted(maps.Keys(req.Steps)) {
			status := req.Steps[step]
			prior, ok := user.Progress[step]
			if !ok {
				continue
			}
			switch {
			case status == models.StepNone && prior == models.StepDone:
				s.alert(user.ConnID, fmt.Sprintf("Task %s solution declined!", step), AlertWarning)
			case status == models.StepAccepted && prior != status:
				s.alert(user.ConnID, fmt.Sprintf("Task %s solution accepted!", step), AlertSuccess)
			}
			user.Progress[step] = status
		}
	}
	s.emit.EmitTo(user.ConnID, EventStepsStatusToClient, req.Steps)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID, "sid": connID}).
		Debug("statuses sent to user")
	return nil
}

// StatusToMentor は生徒が自己申告した進捗を保存し、ホストへ送信します
func (s *ClassroomService) StatusToMentor(_ context.Context, connID string, req StepStatusToMentorRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, room, err := s.callerRoom(connID)
	if err != nil {
		return err
	}
	steps := maps.Clone(map[string]string(req))
	if steps == nil {
		steps = map[string]string{}
	}
	user.Progress = steps
	s.emit.EmitTo(room.Host.ConnID, EventStepsStatusToMentor, UserStepsPayload{UserID: user.ID, Steps: maps.Clone(steps)})

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID, "sid": connID}).
		Debug("statuses sent to host")
	return nil
}

// progressTable は進捗を持つメンバーの一覧です
func progressTable(room *models.Room) []UserStepsPayload {
	withSteps := lo.Filter(room.Members(), func(u *models.User, _ int) bool { return len(u.Progress) > 0 })
	return lo.Map(withSteps, func(u *models.User, _ int) UserStepsPayload {
		return UserStepsPayload{UserID: u.ID, Steps: maps.Clone(u.Progress)}
	})
}

// StepsTable は全生徒の進捗をホストへ送信します
func (s *ClassroomService) StepsTable(_ context.Context, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, room, err := s.hostRoom(connID)
	if err != nil {
		return err
	}
	s.emit.EmitTo(connID, EventStepsTable, progressTable(room))
	return nil
}

// ImportSteps は外部ページからステップを取り込み、ホストへ送信します
// 取り込み中はロックを解放し、完了後にルームを解決し直します
func (s *ClassroomService) ImportSteps(ctx context.Context, connID string, req StepsImportRequest) error {
	s.mu.Lock()
	_, _, err := s.hostRoom(connID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	steps, err := s.opts.Importer.Import(ctx, req.URL)
	if err != nil {
		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			err = &UpstreamError{Service: "import", Err: err}
		}
		s.alert(connID, err.Error(), AlertError)
		return err
	}
	if len(steps) == 0 {
		s.alert(connID, "Looks like there are no tasks on the page!", AlertError)
		return ErrNoSteps
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, room, err := s.hostRoom(connID)
	if err != nil {
		return err
	}
	room.Steps = steps
	s.emit.EmitTo(connID, EventStepsLoad, steps)
	s.alert(connID, "Tasks were successfully imported!", AlertSuccess)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "sid": connID}).
		Infof("%d steps imported", len(steps))
	return nil
}
