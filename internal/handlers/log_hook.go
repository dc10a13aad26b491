package handlers

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/service"
)

// LogPayload は log イベントのペイロードです
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// LogHook はログをクライアントへ log イベントとして送信するlogrusフックです
// sid を持つエントリはその接続へ、room_id を持つエントリはルームへ、それ以外は全員へ送ります
type LogHook struct {
	emit   service.Emitter
	levels []logrus.Level
}

// NewLogHook は level 以上のログを送信するフックを作成します
func NewLogHook(emit service.Emitter, level logrus.Level) *LogHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= level {
			levels = append(levels, l)
		}
	}
	return &LogHook{emit: emit, levels: levels}
}

func (h *LogHook) Levels() []logrus.Level { return h.levels }

func (h *LogHook) Fire(entry *logrus.Entry) error {
	// ハブ自身のログを送ると再帰するため除外
	if entry.Data["component"] == "hub" {
		return nil
	}
	payload := LogPayload{
		Level:   entry.Level.String(),
		Message: entry.Message,
		Time:    entry.Time.UTC().Format(time.TimeOnly),
	}
	if sid, ok := entry.Data["sid"].(string); ok && sid != "" {
		h.emit.EmitTo(sid, service.EventLog, payload)
		return nil
	}
	if roomID, ok := entry.Data["room_id"].(int); ok && roomID != 0 {
		h.emit.EmitRoom(roomID, service.EventLog, payload)
		return nil
	}
	h.emit.Broadcast(service.EventLog, payload)
	return nil
}
