package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/quickchat/qc/internal/ack"
	"github.com/quickchat/qc/internal/bus"
	"github.com/quickchat/qc/internal/cache"
	"github.com/quickchat/qc/internal/chat"
	"github.com/quickchat/qc/internal/config"
	"github.com/quickchat/qc/internal/feedback"
	"github.com/quickchat/qc/internal/identity"
	"github.com/quickchat/qc/internal/lock"
	"github.com/quickchat/qc/internal/logging"
	"github.com/quickchat/qc/internal/rest"
	"github.com/quickchat/qc/internal/send"
	"github.com/quickchat/qc/internal/session"
	intsync "github.com/quickchat/qc/internal/sync"
	"github.com/quickchat/qc/internal/transport"
	"github.com/quickchat/qc/internal/tui"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the client, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("qc",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideProfile,
			provideCache,
			provideRESTClient,
			provideChannel,
			provideStore,
			provideNotifier,
			provideTracker,
			providePipeline,
			provideEngine,
			provideRoster,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.NewBus()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideProfile(p Params) (identity.Profile, error) {
	return identity.LoadProfile(p.SessionName)
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRESTClient(cfg *config.Config, logger *zap.Logger) *rest.Client {
	return rest.NewClient(cfg.APIBaseURL, logger)
}

func provideChannel(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *transport.Channel {
	return transport.NewChannel(cfg.SocketURL, b, logger)
}

func provideStore() *chat.Store {
	return chat.NewStore()
}

func provideNotifier(cfg *config.Config) feedback.Notifier {
	if cfg.SoundEnabled {
		return feedback.NewBell()
	}
	return feedback.Muted{}
}

func provideTracker(store *chat.Store, client *rest.Client, channel *transport.Channel, b *bus.Bus, logger *zap.Logger) *ack.Tracker {
	return ack.NewTracker(store, client, channel, b, logger)
}

func providePipeline(cfg *config.Config, store *chat.Store, client *rest.Client, channel *transport.Channel, db *cache.DB, b *bus.Bus, notifier feedback.Notifier, logger *zap.Logger) *send.Pipeline {
	window := time.Duration(cfg.DebounceMS) * time.Millisecond
	return send.NewPipeline(store, client, channel, db, b, notifier, logger, window)
}

func provideEngine(store *chat.Store, client *rest.Client, channel *transport.Channel, db *cache.DB, tracker *ack.Tracker, pipeline *send.Pipeline, b *bus.Bus, notifier feedback.Notifier, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(store, client, channel, db, tracker, pipeline, b, notifier, logger)
}

func provideRoster(profile identity.Profile, client *rest.Client, db *cache.DB, logger *zap.Logger) *identity.Roster {
	return identity.NewRoster(profile.Identity(), client, db, logger)
}

func provideTUI(p Params, engine *intsync.Engine, roster *identity.Roster, store *chat.Store, client *rest.Client, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(engine, roster, store, client, b, p.SessionName, logger)
}

func registerLifecycle(lc fx.Lifecycle, channel *transport.Channel, engine *intsync.Engine, db *cache.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			channel.Connect(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Close()
			channel.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
