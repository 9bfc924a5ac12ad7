package handler

import (
	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/pkg/response"
	"Helpdesk/internal/service"

	"github.com/gin-gonic/gin"
)

type PushHandler struct {
	pushSvc service.PushService
}

func NewPushHandler(pushSvc service.PushService) *PushHandler {
	return &PushHandler{pushSvc: pushSvc}
}

func (s *PushHandler) Subscribe(c *gin.Context) {
	operatorID := c.GetUint64("user_id")

	var req dto.PushSubscribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := s.pushSvc.Subscribe(c, operatorID, &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *PushHandler) Unsubscribe(c *gin.Context) {
	operatorID := c.GetUint64("user_id")

	var req dto.PushUnsubscribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := s.pushSvc.Unsubscribe(c, operatorID, req.Endpoint, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Debug 推送链路排障页数据
func (s *PushHandler) Debug(c *gin.Context) {
	operatorID := c.GetUint64("user_id")
	resp, err := s.pushSvc.Debug(c, operatorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
