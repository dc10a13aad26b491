// Package service はビジネスロジックを担当します
// ルームの作成・参加・退出・再接続、メッセージやステップの中継などの処理を提供します
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"

	"github.com/observer-pro/observer-back/internal/models"
	"github.com/observer-pro/observer-back/internal/repo"
)

// StepImporter は外部ページからステップを取り込みます
type StepImporter interface {
	Import(ctx context.Context, pageURL string) ([]models.Step, error)
}

// Assistant はAIアシスタントに解答を問い合わせます
type Assistant interface {
	Solve(ctx context.Context, content, code string) (string, error)
}

// Options はClassroomServiceの設定です
type Options struct {
	CloseGrace       time.Duration // room/close からルーム削除までの猶予
	ReconnectGrace   time.Duration // 生徒切断からメンバー削除までの猶予（0以下は即時削除）
	MinPluginVersion string        // これ未満のプラグインには警告を出す（空なら無効）
	Importer         StepImporter
	Assistant        Assistant // nil なら solution/ai は無効
	Logger           *logrus.Logger
}

// ClassroomService はルーム・ユーザーの状態を操作し、結果をEmitterへ送信します
// 各ハンドラーの「確認してから変更する」処理は mu で直列化されます
type ClassroomService struct {
	mu     sync.Mutex
	users  repo.UserRepo
	rooms  repo.RoomRepo
	emit   Emitter
	log    *logrus.Entry
	opts   Options
	timers map[int]*time.Timer // ユーザーID -> 再接続待ちタイマー
	closes map[int]*time.Timer // ルームID -> 削除待ちタイマー
}

// NewClassroomService は新しいClassroomServiceを作成します
func NewClassroomService(users repo.UserRepo, rooms repo.RoomRepo, emit Emitter, opts Options) *ClassroomService {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ClassroomService{
		users:  users,
		rooms:  rooms,
		emit:   emit,
		log:    logger.WithField("component", "service"),
		opts:   opts,
		timers: make(map[int]*time.Timer),
		closes: make(map[int]*time.Timer),
	}
}

// caller は接続IDからユーザーを解決します
func (s *ClassroomService) caller(connID string) (*models.User, error) {
	return s.users.GetByConnection(connID)
}

// callerRoom は接続IDからユーザーと所属ルームを解決します
func (s *ClassroomService) callerRoom(connID string) (*models.User, *models.Room, error) {
	u, err := s.caller(connID)
	if err != nil {
		return nil, nil, err
	}
	if !u.InRoom() {
		return nil, nil, ErrNotInRoom
	}
	room, err := s.rooms.GetRoom(u.RoomID)
	if err != nil {
		return nil, nil, err
	}
	return u, room, nil
}

// hostRoom は呼び出し元がルームのホストであることを確認します
func (s *ClassroomService) hostRoom(connID string) (*models.User, *models.Room, error) {
	u, room, err := s.callerRoom(connID)
	if err != nil {
		return nil, nil, err
	}
	if !u.IsHost() || room.Host.ID != u.ID {
		return nil, nil, ErrNotHost
	}
	return u, room, nil
}

// sendSnapshot はホストへ最新のルーム状態を送信します
func (s *ClassroomService) sendSnapshot(room *models.Room) {
	s.emit.EmitTo(room.Host.ConnID, EventRoomUpdate, room.Snapshot())
}

func (s *ClassroomService) alert(connID, message, kind string) {
	s.emit.EmitTo(connID, EventAlerts, AlertPayload{Message: message, Type: kind})
}

// deprecated は非推奨イベントの利用を呼び出し元へ通知します
func (s *ClassroomService) deprecated(connID, event, alternative string) {
	msg := `The event "` + event + `" is deprecated and will be removed in future releases.`
	if alternative != "" {
		msg += ` Use the event "` + alternative + `" instead.`
	}
	s.emit.EmitTo(connID, EventError, ErrorPayload{Message: msg})
}

// outdated はプラグインのバージョンが最小バージョン未満かどうかを返します
// バージョン未指定や不正な形式も古いものとして扱います
func (s *ClassroomService) outdated(version string) bool {
	if s.opts.MinPluginVersion == "" {
		return false
	}
	v := "v" + strings.TrimPrefix(strings.TrimSpace(version), "v")
	if !semver.IsValid(v) {
		return true
	}
	return semver.Compare(v, "v"+strings.TrimPrefix(s.opts.MinPluginVersion, "v")) < 0
}

func (s *ClassroomService) stopTimer(userID int) {
	if t, ok := s.timers[userID]; ok {
		t.Stop()
		delete(s.timers, userID)
	}
}

// Close は保留中のタイマーをすべて停止します（シャットダウン時）
func (s *ClassroomService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		s.stopTimer(id)
	}
	for id, t := range s.closes {
		t.Stop()
		delete(s.closes, id)
	}
}
