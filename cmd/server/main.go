package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/assistant"
	"github.com/observer-pro/observer-back/internal/config"
	"github.com/observer-pro/observer-back/internal/handlers"
	httpx "github.com/observer-pro/observer-back/internal/http"
	"github.com/observer-pro/observer-back/internal/importer"
	"github.com/observer-pro/observer-back/internal/repo"
	"github.com/observer-pro/observer-back/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	importKeyPrefix = "observer:"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := newLogger(cfg)

	// Redisはインポートキャッシュにのみ使用します（任意）
	var rdb *redis.Client
	var cache importer.Cache
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			PoolSize:     10,              // 接続プールサイズ
			MinIdleConns: 2,               // 最小アイドル接続数
			MaxRetries:   3,               // リトライ回数
			DialTimeout:  5 * time.Second, // 接続タイムアウト
			ReadTimeout:  3 * time.Second, // 読み込みタイムアウト
			WriteTimeout: 3 * time.Second, // 書き込みタイムアウト
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, import cache disabled")
			_ = rdb.Close()
			rdb = nil
		} else {
			logger.WithField("addr", cfg.RedisAddr).Info("connected to redis")
			cache = repo.NewRedisImportCache(rdb, importKeyPrefix, cfg.ImportCacheTTL)
		}
	}

	opts := service.Options{
		CloseGrace:       cfg.RoomCloseGrace,
		ReconnectGrace:   cfg.ReconnectGrace,
		MinPluginVersion: cfg.MinPluginVersion,
		Importer:         importer.NewNotionClient(cfg.ImportTimeout, cache, logger),
		Logger:           logger,
	}
	if cfg.APIURL != "" {
		opts.Assistant = assistant.NewClient(cfg.APIURL, cfg.AssistantTimeout)
	} else {
		logger.Info("API_URL is not set, solution/ai is disabled")
	}

	users := repo.NewMemoryUserRepo()
	rooms := repo.NewMemoryRoomRepo(users)
	hub := handlers.NewHub(logger)
	svc := service.NewClassroomService(users, rooms, hub, opts)
	if cfg.EmitLogs {
		logger.AddHook(handlers.NewLogHook(hub, logger.GetLevel()))
	}

	ws := handlers.NewWebSocketHandler(svc, hub, cfg.WSReadLimit, logger)
	router := httpx.NewRouter(ws, handlers.NewStatsHandler(svc), cfg.AllowedOrigins())

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// サーバーを別goroutineで起動
	go func() {
		logger.WithFields(logrus.Fields{"addr": cfg.APIAddr, "mode": cfg.Server}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("shutting down http server")
				err := srv.Shutdown(ctx)
				svc.Close()
				return err
			},
			"redis": func(context.Context) error {
				if rdb == nil {
					return nil
				}
				return rdb.Close()
			},
		},
	)

	exitCode := <-wait
	logger.WithField("code", exitCode).Info("server stopped")
	os.Exit(exitCode)
}

// newLogger は開発モードではテキスト、それ以外はJSONで出力するロガーを作成します
func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.StandardLogger()
	if cfg.IsDev() {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
