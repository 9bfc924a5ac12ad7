package wire

import (
	"Helpdesk/internal/api"
	"Helpdesk/internal/api/config"
	"Helpdesk/internal/api/handler"
	"Helpdesk/internal/job"
	"Helpdesk/internal/pkg/cron"
	"Helpdesk/internal/pkg/push"
	"Helpdesk/internal/pkg/redis"
	"Helpdesk/internal/pkg/signal"
	"Helpdesk/internal/repository"
	"Helpdesk/internal/service"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router  *gin.Engine
	DB      *gorm.DB
	CronMgr *cron.Manager
}

func BuildApplication(db *gorm.DB, cfg *config.Config) (*ApplicationContainer, error) {
	contactRepo := repository.NewContactRepo(db)
	convRepo := repository.NewConversationRepo(db)
	msgRepo := repository.NewMessageRepo(db)
	presenceRepo := repository.NewPresenceRepo(db)
	subRepo := repository.NewPushSubscriptionRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	ratingRepo := repository.NewRatingRepo(db)

	supportCfg := &cfg.Support

	cache := signal.NewRedisCache(redis.GetRdbClient())
	tracker := signal.NewTracker(cache, msgRepo.MaxID)
	typing := signal.NewTyping(cache)
	governor := signal.NewGovernor(cache, time.Duration(supportCfg.Poll.LockGraceSeconds)*time.Second)

	sender := push.NewWebPushSender(push.Options{
		Subscriber:      supportCfg.Push.Subject,
		VAPIDPublicKey:  supportCfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: supportCfg.Push.VAPIDPrivateKey,
	})

	pushService := service.NewPushService(subRepo, presenceRepo, auditRepo, sender, cache, governor, supportCfg)
	chatService := service.NewChatService(convRepo, contactRepo, msgRepo, ratingRepo, tracker, typing, pushService)
	queueService := service.NewQueueService(convRepo, presenceRepo, supportCfg)
	pollService := service.NewPollService(convRepo, msgRepo, presenceRepo, queueService, tracker, typing, governor, supportCfg)
	operatorService := service.NewOperatorService(convRepo, msgRepo, ratingRepo, presenceRepo, auditRepo, tracker, typing, supportCfg)

	handlers := &api.HandlersGroup{
		ChatHandler:     handler.NewChatHandler(chatService, pollService),
		OperatorHandler: handler.NewOperatorHandler(operatorService, queueService, pollService),
		PushHandler:     handler.NewPushHandler(pushService),
	}

	router := api.SetupRouter(handlers)

	autoCloseJob := job.NewConversationAutoCloseJob(convRepo, msgRepo, auditRepo, tracker, supportCfg)
	cronMgr := cron.NewCronManager(autoCloseJob)

	return &ApplicationContainer{
		Router:  router,
		DB:      db,
		CronMgr: cronMgr,
	}, nil
}
