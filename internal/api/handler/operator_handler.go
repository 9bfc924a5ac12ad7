package handler

import (
	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/pkg/response"
	"Helpdesk/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

// OperatorHandler 客服工作台接口，全部要求 SUPPORT/ADMIN 角色
type OperatorHandler struct {
	operatorSvc service.OperatorService
	queueSvc    service.QueueService
	pollSvc     service.PollService
}

func NewOperatorHandler(operatorSvc service.OperatorService, queueSvc service.QueueService, pollSvc service.PollService) *OperatorHandler {
	return &OperatorHandler{operatorSvc: operatorSvc, queueSvc: queueSvc, pollSvc: pollSvc}
}

func (s *OperatorHandler) Queue(c *gin.Context) {
	operatorID := c.GetUint64("user_id")
	resp, err := s.queueSvc.List(c, operatorID, c.Query("q"), c.Query("filter"), c.Query("sort"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *OperatorHandler) QueuePoll(c *gin.Context) {
	operatorID := c.GetUint64("user_id")
	_, timeout := pollParams(c)

	resp, err := s.pollSvc.PollQueue(c, operatorID, c.Query("fingerprint"), timeout)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *OperatorHandler) GetConversation(c *gin.Context) {
	operatorID := c.GetUint64("user_id")
	convID, err := conversationIDParam(c)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	resp, err := s.operatorSvc.OpenConversation(c, operatorID, convID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *OperatorHandler) Poll(c *gin.Context) {
	operatorID := c.GetUint64("user_id")
	convID, err := conversationIDParam(c)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	cursor, timeout := pollParams(c)

	resp, err := s.pollSvc.PollOperator(c, operatorID, convID, cursor, timeout)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *OperatorHandler) Send(c *gin.Context) {
	operatorID := c.GetUint64("user_id")

	var req dto.OperatorSendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := s.operatorSvc.SendMessage(c, operatorID, c.GetString("user_name"), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *OperatorHandler) Close(c *gin.Context) {
	operatorID := c.GetUint64("user_id")
	convID, err := conversationIDParam(c)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if err = s.operatorSvc.Close(c, operatorID, convID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *OperatorHandler) Reopen(c *gin.Context) {
	operatorID := c.GetUint64("user_id")
	convID, err := conversationIDParam(c)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if err = s.operatorSvc.Reopen(c, operatorID, convID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *OperatorHandler) Typing(c *gin.Context) {
	operatorID := c.GetUint64("user_id")

	var req dto.OperatorTypingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := s.operatorSvc.Typing(c, operatorID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *OperatorHandler) Heartbeat(c *gin.Context) {
	operatorID := c.GetUint64("user_id")

	var req dto.HeartbeatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := s.operatorSvc.Heartbeat(c, operatorID, req.ActiveConversationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func conversationIDParam(c *gin.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("conversation_id"), 10, 64)
}
