package service

import (
	"bufio"
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/models"
)

// ParseIgnorePatterns は .gitignore 形式のテキストを名前・ディレクトリ・拡張子に分類します
//   - 空行と # のコメントは無視
//   - "/" で終わる行はディレクトリ（先頭の * は除去、入れ子のパスは無視）
//   - "*." で始まる行は拡張子
//   - それ以外の * で始まる行は無視
func ParseIgnorePatterns(text string) models.Settings {
	settings := models.Settings{Names: []string{}, Dirs: []string{}, Extensions: []string{}}
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasSuffix(line, "/"):
			dir := strings.TrimPrefix(strings.TrimSuffix(line, "/"), "*")
			if dir == "" || strings.Contains(dir, "/") {
				continue
			}
			settings.Dirs = append(settings.Dirs, dir)
		case strings.HasPrefix(line, "*."):
			settings.Extensions = append(settings.Extensions, strings.TrimPrefix(line, "*."))
		case strings.HasPrefix(line, "*"):
			continue
		default:
			settings.Names = append(settings.Names, line)
		}
	}
	return settings
}

// UpdateSettings は無視パターンを保存し、ルームの生徒へ配信します
// files_to_ignore が空の場合は何もしません
func (s *ClassroomService) UpdateSettings(_ context.Context, connID string, req SettingsRequest) error {
	if strings.TrimSpace(req.FilesToIgnore) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, room, err := s.hostRoom(connID)
	if err != nil {
		return err
	}
	settings := ParseIgnorePatterns(req.FilesToIgnore)
	room.Settings = settings
	s.emit.EmitRoom(room.ID, EventSettings, settings)

	s.log.WithFields(logrus.Fields{"room_id": room.ID, "sid": connID}).Debug("settings sent to room")
	return nil
}
