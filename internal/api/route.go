package api

import (
	"Helpdesk/internal/api/handler"
	"Helpdesk/internal/api/middleware"
	"Helpdesk/internal/pkg/consts"
	"Helpdesk/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandlersGroup 汇集全部 Handler，由 wire 组装
type HandlersGroup struct {
	ChatHandler     *handler.ChatHandler
	OperatorHandler *handler.OperatorHandler
	PushHandler     *handler.PushHandler
}

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		supportGroup := apiGroup.Group("/support")
		{
			// 访客侧：凭会话 token 访问，无需登录
			chatGroup := supportGroup.Group("/chat")
			{
				chatGroup.POST("/start", group.ChatHandler.Start)
				chatGroup.POST("/send", group.ChatHandler.Send)
				chatGroup.GET("/poll", group.ChatHandler.Poll)
				chatGroup.GET("/session", group.ChatHandler.Session)
				chatGroup.POST("/typing", group.ChatHandler.Typing)
				chatGroup.POST("/rate", group.ChatHandler.Rate)
			}

			// 客服工作台：需要登录且具备客服角色
			operatorGroup := supportGroup.Group("/operator")
			operatorGroup.Use(middleware.AuthMiddleware(), middleware.CheckRoles(consts.RoleSupport, consts.RoleAdmin))
			{
				operatorGroup.GET("/queue", group.OperatorHandler.Queue)
				operatorGroup.GET("/queue/poll", group.OperatorHandler.QueuePoll)
				operatorGroup.GET("/conversations/:conversation_id", group.OperatorHandler.GetConversation)
				operatorGroup.GET("/conversations/:conversation_id/poll", group.OperatorHandler.Poll)
				operatorGroup.POST("/conversations/:conversation_id/close", group.OperatorHandler.Close)
				operatorGroup.POST("/conversations/:conversation_id/reopen", group.OperatorHandler.Reopen)
				operatorGroup.POST("/send", group.OperatorHandler.Send)
				operatorGroup.POST("/typing", group.OperatorHandler.Typing)
				operatorGroup.POST("/heartbeat", group.OperatorHandler.Heartbeat)
			}

			pushGroup := supportGroup.Group("/push")
			pushGroup.Use(middleware.AuthMiddleware(), middleware.CheckRoles(consts.RoleSupport, consts.RoleAdmin))
			{
				pushGroup.POST("/subscribe", group.PushHandler.Subscribe)
				pushGroup.POST("/unsubscribe", group.PushHandler.Unsubscribe)
				pushGroup.GET("/debug", group.PushHandler.Debug)
			}
		}
	}

	return r
}
