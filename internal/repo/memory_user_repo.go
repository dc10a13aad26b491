package repo

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/observer-pro/observer-back/internal/models"
)

// ユーザーIDの採番開始値
const firstUserID = 100

type MemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[string]*models.User // 接続ID -> User
	nextID int
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:  make(map[string]*models.User),
		nextID: firstUserID,
	}
}

func (r *MemoryUserRepo) CreateUser(connID, name string, role models.Role, roomID int) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := models.NewUser(r.nextID, connID, name, role, roomID)
	r.nextID++
	r.users[connID] = u
	return u
}

func (r *MemoryUserRepo) GetByConnection(connID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[connID]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", connID, ErrUserNotFound)
	}
	return u, nil
}

func (r *MemoryUserRepo) ReplaceConnection(oldConnID, newConnID string) (*models.User, error) {
	if newConnID == "" {
		return nil, ErrEmptyConnection
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[oldConnID]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", oldConnID, ErrUserNotFound)
	}
	if oldConnID == newConnID {
		return u, nil
	}
	if other, taken := r.users[newConnID]; taken && other != u {
		return nil, fmt.Errorf("connection %s: %w", newConnID, ErrConnectionInUse)
	}
	delete(r.users, oldConnID)
	u.ConnID = newConnID
	r.users[newConnID] = u
	return u, nil
}

func (r *MemoryUserRepo) DeleteUser(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[connID]; !ok {
		return fmt.Errorf("connection %s: %w", connID, ErrUserNotFound)
	}
	delete(r.users, connID)
	return nil
}

// ListUsers はID順の全ユーザーを返します（診断用）
func (r *MemoryUserRepo) ListUsers() []*models.User {
	r.mu.RLock()
	out := lo.Values(r.users)
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *models.User) int { return a.ID - b.ID })
	return out
}
