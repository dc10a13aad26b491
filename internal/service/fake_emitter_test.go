package service

import (
	"context"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/observer-pro/observer-back/internal/models"
	"github.com/observer-pro/observer-back/internal/repo"
)

// emitted は送信された1イベントの記録です
type emitted struct {
	To      string // EmitTo の宛先
	Room    int    // EmitRoom の宛先
	Event   string
	Payload any
	Skip    []string
}

// fakeEmitter は送信イベントとグループ操作を記録します
type fakeEmitter struct {
	mu           sync.Mutex
	events       []emitted
	groups       map[int]map[string]bool
	disconnected []string
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{groups: make(map[int]map[string]bool)}
}

func (f *fakeEmitter) EmitTo(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{To: connID, Event: event, Payload: payload})
}

func (f *fakeEmitter) EmitRoom(roomID int, event string, payload any, skip ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{Room: roomID, Event: event, Payload: payload, Skip: skip})
}

func (f *fakeEmitter) Broadcast(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{Event: event, Payload: payload})
}

func (f *fakeEmitter) JoinGroup(connID string, roomID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[roomID] == nil {
		f.groups[roomID] = make(map[string]bool)
	}
	f.groups[roomID][connID] = true
}

func (f *fakeEmitter) LeaveGroup(connID string, roomID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups[roomID], connID)
}

func (f *fakeEmitter) CloseGroup(roomID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, roomID)
}

func (f *fakeEmitter) Disconnect(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, connID)
}

// to は接続宛てに送られたイベントを返します
func (f *fakeEmitter) to(connID, event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.events {
		if e.To == connID && e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

// last は接続宛ての最後のイベントを返します
func (f *fakeEmitter) last(t *testing.T, connID, event string) any {
	t.Helper()
	got := f.to(connID, event)
	require.NotEmpty(t, got, "no %s sent to %s", event, connID)
	return got[len(got)-1]
}

// room はルーム宛てに送られたイベントを返します
func (f *fakeEmitter) room(roomID int, event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.events {
		if e.Room == roomID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeEmitter) inGroup(roomID int, connID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[roomID][connID]
}

func (f *fakeEmitter) wasDisconnected(connID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.disconnected, connID)
}

func (f *fakeEmitter) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

type fakeImporter struct {
	steps []models.Step
	err   error
	urls  []string
}

func (f *fakeImporter) Import(_ context.Context, pageURL string) ([]models.Step, error) {
	f.urls = append(f.urls, pageURL)
	return f.steps, f.err
}

type fakeAssistant struct {
	answer string
	err    error
}

func (f *fakeAssistant) Solve(_ context.Context, _, _ string) (string, error) {
	return f.answer, f.err
}

// fixture はテスト用の新しいレジストリとサービスの組です
type fixture struct {
	svc   *ClassroomService
	users *repo.MemoryUserRepo
	rooms *repo.MemoryRoomRepo
	emit  *fakeEmitter
	ctx   context.Context
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	opts := Options{
		CloseGrace:       20 * time.Millisecond,
		ReconnectGrace:   time.Minute,
		MinPluginVersion: "1.2.0",
		Importer:         &fakeImporter{},
		Logger:           logger,
	}
	for _, m := range mutate {
		m(&opts)
	}
	users := repo.NewMemoryUserRepo()
	rooms := repo.NewMemoryRoomRepo(users)
	emit := newFakeEmitter()
	svc := NewClassroomService(users, rooms, emit, opts)
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, users: users, rooms: rooms, emit: emit, ctx: context.Background()}
}

// createRoom はホスト "Teacher" のルームを作成し、ルームIDを返します
func (f *fixture) createRoom(t *testing.T, hostConn string) int {
	t.Helper()
	require.NoError(t, f.svc.CreateRoom(f.ctx, hostConn, CreateRoomRequest{Name: "Teacher"}))
	snap := f.emit.last(t, hostConn, EventRoomUpdate).(models.RoomSnapshot)
	return snap.ID
}

// join は生徒を参加させ、ユーザーIDを返します
func (f *fixture) join(t *testing.T, conn string, roomID int, name string) int {
	t.Helper()
	require.NoError(t, f.svc.JoinRoom(f.ctx, conn, JoinRoomRequest{RoomID: roomID, Name: name, Version: "1.2.6"}))
	return f.emit.last(t, conn, EventRoomJoin).(JoinPayload).UserID
}

func (f *fixture) snapshot(t *testing.T, hostConn string) models.RoomSnapshot {
	t.Helper()
	return f.emit.last(t, hostConn, EventRoomUpdate).(models.RoomSnapshot)
}

func names(snap models.RoomSnapshot) []string {
	out := make([]string, 0, len(snap.Users))
	for _, u := range snap.Users {
		out = append(out, u.Name)
	}
	return out
}
