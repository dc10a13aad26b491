// Package idgen は接続IDとゲスト名を生成します
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewConnectionID はWebSocket接続ごとの一意なIDを返します
func NewConnectionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// NewGuestName は名前を指定しなかった参加者用の表示名（Guest + 10桁の数字）を返します
func NewGuestName() (string, error) {
	const digits = "0123456789"
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = digits[b[i]%byte(len(digits))]
	}
	return "Guest" + string(b), nil
}
