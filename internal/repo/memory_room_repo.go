package repo

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/observer-pro/observer-back/internal/models"
)

// ルームIDの採番開始値
const firstRoomID = 1000

type MemoryRoomRepo struct {
	mu     sync.RWMutex
	rooms  map[int]*models.Room
	nextID int
	users  UserRepo
}

// NewMemoryRoomRepo はルームレジストリを作成します
// users はルーム削除時のメンバー削除に使用します
func NewMemoryRoomRepo(users UserRepo) *MemoryRoomRepo {
	return &MemoryRoomRepo{
		rooms:  make(map[int]*models.Room),
		nextID: firstRoomID,
		users:  users,
	}
}

func (r *MemoryRoomRepo) CreateRoom(host *models.User) *models.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	host.RoomID = id
	room := models.NewRoom(id, host)
	r.rooms[id] = room
	return room
}

func (r *MemoryRoomRepo) GetRoom(id int) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, ErrRoomNotFound)
	}
	return room, nil
}

func (r *MemoryRoomRepo) DeleteRoom(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return fmt.Errorf("room %d: %w", id, ErrRoomNotFound)
	}
	delete(r.rooms, id)
	for _, m := range room.Members() {
		// 切断済みなどで既に削除されているユーザーは無視
		_ = r.users.DeleteUser(m.ConnID)
		m.RoomID = 0
	}
	return nil
}

func (r *MemoryRoomRepo) ListRooms() []*models.Room {
	r.mu.RLock()
	out := lo.Values(r.rooms)
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *models.Room) int { return a.ID - b.ID })
	return out
}

func (r *MemoryRoomRepo) Summary() Summary {
	rooms := r.ListRooms()
	return Summary{
		TotalRooms: len(rooms),
		Rooms: lo.Map(rooms, func(room *models.Room, _ int) RoomSummary {
			return RoomSummary{
				RoomID:     room.ID,
				UsersCount: room.MemberCount(),
				HostID:     room.Host.ID,
			}
		}),
	}
}
