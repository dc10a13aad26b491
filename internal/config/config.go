// Package config はアプリケーションの設定を管理します
// .env と環境変数から設定を読み込み、デフォルト値を提供します
package config

import (
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持します
type Config struct {
	APIAddr     string `env:"API_ADDR,default=:8080"`            // APIサーバーのリッスンアドレス
	Server      string `env:"SERVER,default=prod"`               // dev / prod
	LogLevel    string `env:"LOG_LEVEL,default=info"`            // logrusのレベル
	EmitLogs    bool   `env:"EMIT_LOGS,default=false"`           // ログを log イベントとしてクライアントへ送る
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"` // カンマ区切り

	RoomCloseGrace   time.Duration `env:"ROOM_CLOSE_GRACE,default=2s"`  // room/close から削除までの猶予
	ReconnectGrace   time.Duration `env:"RECONNECT_GRACE,default=30s"`  // 生徒の再接続待ち時間
	MinPluginVersion string        `env:"MIN_PLUGIN_VERSION,default=1.2.0"`

	RedisAddr      string        `env:"REDIS_ADDR"` // 空ならインポートキャッシュなし
	ImportCacheTTL time.Duration `env:"IMPORT_CACHE_TTL,default=10m"`
	ImportTimeout  time.Duration `env:"IMPORT_TIMEOUT,default=15s"`

	APIURL           string        `env:"API_URL"` // 空なら solution/ai は無効
	AssistantTimeout time.Duration `env:"ASSISTANT_TIMEOUT,default=30s"`

	WSReadLimit int `env:"WS_READ_LIMIT,default=1048576"` // 受信フレームの最大サイズ
}

// Load は .env（あれば）と環境変数から設定を読み込みます
// 環境変数が設定されていない場合はデフォルト値を使用します
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev は開発モードかどうかを返します
func (c Config) IsDev() bool { return c.Server == "dev" }

// AllowedOrigins はCORSで許可するオリジン一覧を返します
func (c Config) AllowedOrigins() []string {
	return splitCSV(c.CORSOrigins, []string{"*"})
}

// splitCSV はカンマ区切りの文字列をリストにします
// 空の場合はデフォルト値を返します
func splitCSV(v string, def []string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) > 0 {
		return out
	}
	return def
}
