package handlers

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/idgen"
)

const (
	writeWait      = 10 * time.Second    // 1回の書き込みの上限
	pongWait       = 60 * time.Second    // pong を待つ時間
	pingPeriod     = (pongWait * 9) / 10 // ping の送信間隔（pongWait より短くする）
	sendBufferSize = 256
)

// WebSocketMessage はWebSocketで送受信するメッセージの構造
// すべてのメッセージはこの形式でやり取りされます
type WebSocketMessage struct {
	Type    string `json:"type"`    // イベント名 (例: "room/join", "steps/all")
	Payload any    `json:"payload"` // イベントのペイロード
}

// inboundMessage は受信メッセージです。ペイロードはイベントごとの型へ後でデコードします
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub は接続IDごとのWebSocket接続とルームのグループを管理します
// service.Emitter を実装し、送信はすべて非ブロッキングです
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[int]map[string]struct{} // ルームID -> 接続IDの集合
	log     *logrus.Entry
}

// Client は1つのWebSocket接続を表します
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	kick   chan struct{} // サーバー側からの切断要求
	once   sync.Once
	groups map[int]struct{} // hub.mu で保護
}

// NewHub は新しいHubを作成します
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[int]map[string]struct{}),
		log:     logger.WithField("component", "hub"),
	}
}

// register は接続に新しい接続IDを割り当てて登録します
func (h *Hub) register(conn *websocket.Conn) *Client {
	c := &Client{
		id:     idgen.NewConnectionID(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		kick:   make(chan struct{}),
		groups: make(map[int]struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

// unregister は接続を登録解除し、所属グループからも外します
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	for roomID := range c.groups {
		h.leaveLocked(c.id, roomID)
	}
	close(c.send)
}

// Connections は登録中の接続数を返します
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	b, err := json.Marshal(WebSocketMessage{Type: event, Payload: payload})
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("failed to encode message")
		return nil, false
	}
	return b, true
}

// enqueue は hub.mu を保持した状態で呼び出します
// 送信バッファが一杯の場合はメッセージを破棄します
func (h *Hub) enqueue(c *Client, event string, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.log.WithFields(logrus.Fields{"sid": c.id, "event": event}).Warn("send buffer full, dropping message")
	}
}

func (h *Hub) EmitTo(connID, event string, payload any) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		h.enqueue(c, event, msg)
	}
}

func (h *Hub) EmitRoom(roomID int, event string, payload any, skip ...string) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.groups[roomID] {
		if slices.Contains(skip, connID) {
			continue
		}
		if c, ok := h.clients[connID]; ok {
			h.enqueue(c, event, msg)
		}
	}
}

func (h *Hub) Broadcast(event string, payload any) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.enqueue(c, event, msg)
	}
}

func (h *Hub) JoinGroup(connID string, roomID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.groups[roomID] == nil {
		h.groups[roomID] = make(map[string]struct{})
	}
	h.groups[roomID][connID] = struct{}{}
	c.groups[roomID] = struct{}{}
}

func (h *Hub) LeaveGroup(connID string, roomID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, roomID)
}

func (h *Hub) leaveLocked(connID string, roomID int) {
	if members, ok := h.groups[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, roomID)
		}
	}
	if c, ok := h.clients[connID]; ok {
		delete(c.groups, roomID)
	}
}

// CloseGroup はルームのグループを解散します。接続自体は維持されます
func (h *Hub) CloseGroup(roomID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.groups[roomID] {
		if c, ok := h.clients[connID]; ok {
			delete(c.groups, roomID)
		}
	}
	delete(h.groups, roomID)
}

// Disconnect はキュー済みのメッセージを送信した後に接続を閉じます
func (h *Hub) Disconnect(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.once.Do(func() { close(c.kick) })
	}
}

// InGroup はテスト用に接続がグループに属しているかを返します
func (h *Hub) InGroup(connID string, roomID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[roomID][connID]
	return ok
}

// writePump は send チャネルのメッセージを接続へ書き込みます
// 接続ごとに1つのgoroutineで動作します
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	logger := c.hub.log.WithField("sid", c.id)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub が send を閉じた
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.WithError(err).Warn("failed to write message")
				return
			}
		case <-c.kick:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disconnected by host"))
			logger.Info("connection closed by server")
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WithError(err).Debug("failed to send ping")
				return
			}
		}
	}
}

// flush は切断前にキューに残っているメッセージを書き込みます
func (c *Client) flush() {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
