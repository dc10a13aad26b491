package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/service"
)

const errorPrefix = "400 BAD REQUEST. "

// eventHandler は1つの受信イベントを処理します
type eventHandler func(ctx context.Context, connID string, payload json.RawMessage) error

// WebSocketHandler はWebSocket接続を処理するハンドラー
type WebSocketHandler struct {
	svc       *service.ClassroomService // ビジネスロジックを担当するサービス
	hub       *Hub                      // WebSocket接続を管理するハブ
	validate  *validator.Validate
	upgrader  websocket.Upgrader // HTTPからWebSocketへのアップグレーダー
	readLimit int64
	log       *logrus.Entry
	events    map[string]eventHandler
}

// NewWebSocketHandler は新しいWebSocketHandlerを作成します
func NewWebSocketHandler(svc *service.ClassroomService, hub *Hub, readLimit int, logger *logrus.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		svc:      svc,
		hub:      hub,
		validate: newValidator(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// オリジンはCORS設定で制限します
				return true
			},
		},
		readLimit: int64(readLimit),
		log:       logger.WithField("component", "websocket"),
	}
	h.events = h.routes()
	return h
}

func (h *WebSocketHandler) routes() map[string]eventHandler {
	v := h.validate
	return map[string]eventHandler{
		service.EventRoomCreate: bind(v, h.svc.CreateRoom),
		service.EventRoomJoin:   bind(v, h.svc.JoinRoom),
		service.EventRoomLeave:  bind(v, h.svc.LeaveRoom),
		service.EventRoomRejoin: bind(v, h.svc.Rejoin),
		service.EventRoomRehost: bind(v, h.svc.Rehost),
		service.EventRoomClose:  bind(v, h.svc.CloseRoom),
		service.EventRoomKill:   bind(v, h.svc.KillUser),
		service.EventRoomLog:    noPayload(h.svc.SendRoomsLog),

		service.EventMessageToClient: bind(v, h.svc.SendToClient),
		service.EventMessageToMentor: bind(v, h.svc.SendToMentor),
		service.EventMessageUser:     bind(v, h.svc.UserMessages),

		service.EventStepsAll:            bind(v, h.svc.SetSteps),
		service.EventStepsStatusToClient: bind(v, h.svc.StatusToClient),
		service.EventStepsStatusToMentor: bind(v, h.svc.StatusToMentor),
		service.EventStepsTable:          noPayload(h.svc.StepsTable),
		service.EventStepsImport:         bind(v, h.svc.ImportSteps),

		service.EventExercise:         bind(v, h.svc.SetExercise),
		service.EventExerciseFeedback: bind(v, h.svc.ExerciseFeedback),
		service.EventExerciseReset:    noPayload(h.svc.ResetExercise),
		service.EventSignal:           bind(v, h.svc.SendSignal),

		service.EventSharingStart:      bind(v, h.svc.StartSharing),
		service.EventSharingEnd:        noPayload(h.svc.EndSharing),
		service.EventSharingCodeSend:   h.forwardCode(service.EventSharingCodeSend),
		service.EventSharingCodeUpdate: h.forwardCode(service.EventSharingCodeUpdate),

		service.EventSettings:   bind(v, h.svc.UpdateSettings),
		service.EventSolutionAI: bind(v, h.svc.AskAssistant),
	}
}

// bind はペイロードを T にデコード・検証してからサービスを呼び出します
func bind[T any](v *validator.Validate, fn func(context.Context, string, T) error) eventHandler {
	return func(ctx context.Context, connID string, payload json.RawMessage) error {
		var req T
		if err := decodePayload(payload, &req); err != nil {
			return err
		}
		if err := validateRequest(v, req); err != nil {
			return err
		}
		return fn(ctx, connID, req)
	}
}

func noPayload(fn func(context.Context, string) error) eventHandler {
	return func(ctx context.Context, connID string, _ json.RawMessage) error {
		return fn(ctx, connID)
	}
}

// forwardCode はコード共有イベントのペイロードを room_id とそれ以外のデータに分けます
func (h *WebSocketHandler) forwardCode(event string) eventHandler {
	return func(ctx context.Context, connID string, payload json.RawMessage) error {
		var req service.SharingCodeRequest
		if err := decodePayload(payload, &req); err != nil {
			return err
		}
		if err := decodePayload(payload, &req.Data); err != nil {
			return err
		}
		delete(req.Data, "room_id")
		if err := validateRequest(h.validate, req); err != nil {
			return err
		}
		return h.svc.ForwardCode(ctx, connID, event, req)
	}
}

// HandleWebSocket はWebSocket接続を処理します
// 接続後、以下の処理を行います:
// 1. HTTPからWebSocketへのアップグレード
// 2. 接続IDの割り当てとハブへの登録
// 3. メッセージ受信ループの開始
// 4. 切断時のハブからの登録解除とサービスへの切断通知
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := h.hub.register(conn)
	logger := h.log.WithField("sid", client.id)
	go client.writePump()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.hub.unregister(client)
		h.svc.Disconnect(client.id)
		conn.Close()
		logger.Info("websocket disconnected")
	}()

	logger.Info("websocket connected")

	conn.SetReadLimit(h.readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// メッセージ受信ループ
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.WithError(err).Warn("websocket read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reject(client.id, "", &service.ValidationError{Msg: "message must be {\"type\": ..., \"payload\": ...}"})
			continue
		}
		h.dispatch(ctx, client.id, msg)
	}
}

// dispatch はイベントに対応するハンドラーを呼び出します
// エラーは呼び出し元への error イベントに変換され、パニックはこの接続内で回復します
func (h *WebSocketHandler) dispatch(ctx context.Context, connID string, msg inboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.WithFields(logrus.Fields{"sid": connID, "event": msg.Type, "panic": rec}).
				Errorf("handler panicked\n%s", debug.Stack())
			h.hub.EmitTo(connID, service.EventError, service.ErrorPayload{Message: errorPrefix + "internal error"})
		}
	}()

	handle, ok := h.events[msg.Type]
	if !ok {
		h.reject(connID, msg.Type, &service.ValidationError{Msg: fmt.Sprintf("unknown event %q", msg.Type)})
		return
	}
	if err := handle(ctx, connID, msg.Payload); err != nil {
		h.reject(connID, msg.Type, err)
	}
}

// reject はエラーを記録し、呼び出し元へ error イベントを送信します
func (h *WebSocketHandler) reject(connID, event string, err error) {
	h.log.WithFields(logrus.Fields{"sid": connID, "event": event}).WithError(err).Warn("event rejected")
	h.hub.EmitTo(connID, service.EventError, service.ErrorPayload{Message: errorPrefix + err.Error()})
}
