package wire

import (
	log "log/slog"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"Ephemera/internal/api"
	"Ephemera/internal/api/config"
	"Ephemera/internal/api/handler"
	"Ephemera/internal/job"
	"Ephemera/internal/pkg/cron"
	"Ephemera/internal/pkg/kafka"
	mongorepo "Ephemera/internal/pkg/mongo"
	"Ephemera/internal/pkg/push"
	"Ephemera/internal/pkg/redis"
	"Ephemera/internal/pkg/security"
	"Ephemera/internal/repository"
	"Ephemera/internal/service"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	KafkaManager *kafka.ConsumerManager
	Producer     *kafka.MessageProducer
	CronMgr      *cron.Manager
}

func BuildApplication(db *gorm.DB, mongoDB *mongo.Database, cfg *config.Config) (*ApplicationContainer, error) {
	security.Configure(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	tiers, err := config.TierResolver(cfg.Tiers)
	if err != nil {
		return nil, err
	}

	conversationRepo := repository.NewConversationRepo(db)
	messageRepo := mongorepo.NewMessageRepo(mongoDB)
	eventBus := redis.NewEventBus()
	pushTokens := redis.NewPushTokenStore()

	app := &ApplicationContainer{DB: db}

	// 未配置 broker 时不投递新消息通知
	var queue service.NotificationQueue
	if cfg.Push.Enable && len(cfg.Kafka.Brokers) > 0 {
		app.Producer, err = kafka.NewMessageProducer(cfg.Kafka, cfg.KafkaNotifyConsumer.Topic)
		if err != nil {
			return nil, err
		}
		queue = app.Producer

		notifier := push.NewExpoNotifier(cfg.Push.URL, cfg.Push.Timeout)
		app.KafkaManager, err = kafka.NewConsumerManager(cfg, pushTokens, notifier, tiers)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("push notifications disabled")
	}

	messageService := service.NewMessageService(conversationRepo, messageRepo, eventBus, queue, service.MessageServiceOptions{
		EditWindow: cfg.Chat.EditWindow,
		Policy:     cfg.Chat.Decay,
	})
	pushTokenService := service.NewPushTokenService(pushTokens)

	handlers := &api.HandlersGroup{
		MessageHandler: handler.NewMessageHandler(messageService),
		PushHandler:    handler.NewPushHandler(pushTokenService),
		WSHandler:      handler.NewWsHandler(eventBus),
	}
	app.Router, err = api.SetupRouter(handlers)
	if err != nil {
		return nil, err
	}

	pruneJob := job.NewMessagePruneJob(messageRepo, redis.NewLocker(), cfg.Chat.Decay)
	app.CronMgr = cron.NewCronManager(pruneJob, cfg.Chat.PruneCron)

	return app, nil
}
