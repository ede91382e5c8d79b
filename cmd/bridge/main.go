package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"contextbase/auth"
	"contextbase/chatstore"
	"contextbase/clients/chatclient"
	"contextbase/cmd/bridge/router"
	"contextbase/config"
	"contextbase/db"
	"contextbase/eventbus"
	"contextbase/events"
	"contextbase/httpclient"
	"contextbase/internal/cachesync"
	"contextbase/internal/logger"
	"contextbase/notify"
	"contextbase/orchestrator"
	"contextbase/repositories"
)

const phaseAuditGroup = "contextbase-bridge-audit"

func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 원격 채팅 서비스 클라이언트
	tokens := auth.NewEnvTokenSource(cfg.Session.TokenEnv)
	tokens.OnInvalidate(func() {
		logger.Log.Warn("session token invalidated, sign in again and restart the bridge")
	})
	base := httpclient.NewBaseClient(cfg.API.BaseURL, httpclient.Config{Timeout: cfg.API.Timeout, Tokens: tokens})
	remote := chatclient.New(base)

	// EventBus 초기화
	bus, err := newBus(ctx, cfg.EventBus)
	if err != nil {
		logger.Log.Errorf("failed to create event bus: %v", err)
		os.Exit(1)
	}
	defer bus.Close()
	topic := eventbus.NewTopic(cfg.EventBus.Topic)

	recorder := notify.NewRecorder(cfg.Notifications.Keep)
	store := chatstore.New()
	orch := orchestrator.New(store, remote, orchestrator.Options{
		Notifier: notify.Multi(recorder, notify.NewBusNotifier(bus, topic)),
		Bus:      bus,
		Topic:    topic,
	})

	var wg sync.WaitGroup

	// 단계 이벤트 감사 로그
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := eventbus.SubscribeJSON(ctx, bus, phaseAuditGroup, topic, func(ctx context.Context, evt events.OperationPhaseEvent, meta eventbus.Event) error {
			if events.EventType(meta.Type) != events.OperationPhaseChanged || !evt.Phase.Terminal() {
				return nil
			}
			logger.InfoWithFields("operation settled", logger.Fields{
				"operation":  evt.Operation,
				"phase":      evt.Phase,
				"chat_id":    evt.ChatID,
				"request_id": evt.RequestID,
				"error_kind": evt.ErrorKind,
			})
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, eventbus.ErrClosed) {
			logger.Log.Errorf("eventbus subscribe error: %v", err)
		}
	}()

	// 로컬 채팅 목록 캐시
	repo, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		logger.Log.Errorf("failed to open chat cache, continuing without it: %v", err)
	}
	if repo != nil {
		defer closeCache()
		if n := cachesync.WarmStart(ctx, store, repo, cfg.Cache.UserKey); n > 0 {
			logger.InfoWithFields("chat list restored from cache", logger.Fields{"count": n})
		}
		done := cachesync.Start(ctx, orch, repo, cfg.Cache.UserKey)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-done
		}()
	}

	// 첫 목록 조회. 실패해도 알림과 LastError 로 드러나므로 서버는 계속 띄운다.
	go func() {
		if _, err := orch.FetchChats(ctx); err != nil {
			logger.Log.Warnf("initial chat list fetch failed: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Bridge.Addr,
		Handler: router.WithCORS(router.New(orch, recorder), cfg.Bridge.AllowedOrigins),
	}
	go func() {
		logger.InfoWithFields("bridge listening", logger.Fields{"addr": srv.Addr, "api_base_url": cfg.API.BaseURL})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("bridge server error: %v", err)
			cancel()
		}
	}()

	// Graceful shutdown 설정
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Log.Info("received shutdown signal, shutting down bridge...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("bridge shutdown error: %v", err)
	}

	cancel()
	wg.Wait()
	logger.Log.Info("bridge stopped")
}

func newBus(ctx context.Context, cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.Driver != "kafka" {
		return eventbus.NewMemoryEventBus(64), nil
	}
	if err := eventbus.EnsureTopics(ctx, cfg.Brokers, cfg.Partitions, eventbus.NewTopic(cfg.Topic)); err != nil {
		logger.Log.Errorf("failed to ensure eventbus topics: %v", err)
	}
	bus, err := eventbus.NewKafkaEventBus(cfg.Brokers)
	if err != nil {
		return nil, err
	}
	return bus, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig) (repositories.ChatCacheRepository, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		d, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewSQLiteChatCache(d), func() { _ = d.Close() }, nil
	case "mongo":
		if err := db.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase); err != nil {
			return nil, nil, err
		}
		return repositories.NewMongoChatCache(db.Database()), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.DisconnectMongo(ctx)
		}, nil
	default:
		return nil, nil, nil
	}
}
