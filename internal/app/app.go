package app

import (
	"context"
	"database/sql"
	"fmt"

	"atma-secure/internal/audio"
	"atma-secure/internal/classifier"
	"atma-secure/internal/config"
	"atma-secure/internal/dispatcher"
	"atma-secure/internal/notifier"
	"atma-secure/internal/photo"
	"atma-secure/internal/repository"
	"atma-secure/internal/service"
	"atma-secure/internal/store"

	"atma-secure/common/database"
	mqttcommon "atma-secure/common/mqtt"
	rediscommon "atma-secure/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// App 组装好的服务组件
type App struct {
	Config     *config.Config
	EventLog   repository.EventLog
	Controller *service.SessionController
	Audit      *service.AuditService
	MQTT       *mqttcommon.Client     // MQTT 未启用时为 nil
	Stream     *store.StreamPublisher // Redis 转发未启用时为 nil

	db      *sql.DB
	redis   *redis.Client
	mirrors *notifier.Multi
	logger  *zap.Logger
}

// New 按配置组装：事件日志 → (Redis 转发) → 通知/声音/照片 → 调度器 → 会话控制器
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	eventLog, err := a.openEventLog(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		client, err := rediscommon.Dial(ctx, cfg.Redis.Options)
		if err != nil {
			logger.Warn("Redis unavailable, event forwarding disabled", zap.Error(err))
		} else {
			a.redis = client
			a.Stream = store.NewStreamPublisher(a.redis, cfg.Redis.EventStream, cfg.Redis.StreamMaxLen)
			eventLog = repository.NewPublishingEventLog(eventLog, a.Stream, logger)
			logger.Info("Event forwarding enabled", zap.String("stream", cfg.Redis.EventStream))
		}
	}
	a.EventLog = eventLog

	if cfg.MQTT.Enabled {
		client, err := mqttcommon.Dial(cfg.MQTT.Options, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.MQTT = client
	}

	player, err := a.newPlayer()
	if err != nil {
		a.Close()
		return nil, err
	}

	photos, err := photo.NewDirStore(cfg.Alert.PhotoDir, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	d := dispatcher.NewDispatcher(a.newNotifier(), player, photos, dispatcher.Config{
		HelpPhrase:    audio.Phrase(cfg.Audio.Phrase, cfg.Audio.Repeat),
		NotifyTimeout: cfg.Alert.NotifyTimeout,
	}, logger)

	a.Controller = service.NewSessionController(
		a.newAdapter(),
		d,
		eventLog,
		service.SessionControllerConfig{
			Recipients:     cfg.Alert.Recipients,
			DefaultMessage: cfg.Alert.DefaultMessage,
		},
		logger,
	)
	a.Audit = service.NewAuditService(eventLog, logger)
	return a, nil
}

// Close 释放连接
func (a *App) Close() {
	if a.mirrors != nil {
		a.mirrors.Wait()
	}
	if a.MQTT != nil {
		a.MQTT.Disconnect()
	}
	if a.redis != nil {
		_ = rediscommon.Close(a.redis)
	}
	if a.db != nil {
		_ = database.Close(a.db)
	}
}

func (a *App) openEventLog(ctx context.Context) (repository.EventLog, error) {
	cfg := a.Config
	switch cfg.EventLog.Backend {
	case config.BackendPostgres, config.BackendSQLite:
		var (
			db      *sql.DB
			err     error
			dialect repository.Dialect
		)
		if cfg.EventLog.Backend == config.BackendPostgres {
			db, err = database.OpenPostgres(ctx, cfg.Database)
			dialect = repository.DialectPostgres
		} else {
			db, err = database.OpenSQLite(ctx, cfg.EventLog.SQLitePath)
			dialect = repository.DialectSQLite
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open event log database: %w", err)
		}
		a.db = db

		sqlLog := repository.NewSQLEventLog(db, dialect, a.logger)
		if err := sqlLog.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("Event log opened", zap.String("backend", cfg.EventLog.Backend))
		return sqlLog, nil
	default:
		a.logger.Info("Event log opened",
			zap.String("backend", config.BackendCSV),
			zap.String("path", cfg.EventLog.CSVPath),
		)
		return repository.NewCSVEventLog(cfg.EventLog.CSVPath, a.logger), nil
	}
}

func (a *App) newNotifier() notifier.Notifier {
	cfg := a.Config
	var primary notifier.Notifier
	if cfg.Twilio.AccountSID != "" {
		primary = notifier.NewWhatsAppClient(
			cfg.Twilio.BaseURL,
			cfg.Twilio.AccountSID,
			cfg.Twilio.AuthToken,
			cfg.Alert.SenderAddress,
			cfg.Twilio.Retries,
			a.logger,
		)
	} else {
		a.logger.Warn("Messaging credentials not set, notifications run in dry-run mode")
		primary = notifier.NewDryRunNotifier(a.logger)
	}

	if a.MQTT != nil && cfg.MQTT.AlertTopic != "" {
		mirror := notifier.NewMQTTNotifier(a.MQTT, cfg.MQTT.AlertTopic, a.MQTT.QoS())
		a.mirrors = notifier.NewMulti(a.logger, primary, mirror)
		return a.mirrors
	}
	return primary
}

func (a *App) newAdapter() *classifier.Adapter {
	cfg := a.Config.Classifier
	if cfg.URL == "" {
		return classifier.NewAdapter(nil, nil, a.logger)
	}
	a.logger.Info("Remote classifier enabled", zap.String("url", cfg.URL))
	detector := classifier.NewHTTPDetector(cfg.URL, cfg.Timeout, a.logger)
	return classifier.NewAdapter(detector, detector, a.logger)
}

func (a *App) newPlayer() (audio.Player, error) {
	cfg := a.Config
	switch cfg.Audio.Mode {
	case config.AudioMQTT:
		if a.MQTT == nil {
			return nil, fmt.Errorf("audio mode mqtt requires an MQTT connection")
		}
		return audio.NewRemotePlayer(a.MQTT, cfg.MQTT.SpeakerTopic, a.MQTT.QoS(), cfg.Audio.Rate, cfg.Audio.Volume), nil
	case config.AudioNone:
		return audio.NopPlayer{}, nil
	default:
		return audio.NewCommandPlayer(cfg.Audio.Command, a.logger)
	}
}
