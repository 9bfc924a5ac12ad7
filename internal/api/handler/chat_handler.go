package handler

import (
	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/pkg/response"
	"Helpdesk/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ChatHandler 访客侧接口，凭会话 token 而非登录态访问
type ChatHandler struct {
	chatSvc service.ChatService
	pollSvc service.PollService
}

func NewChatHandler(chatSvc service.ChatService, pollSvc service.PollService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc, pollSvc: pollSvc}
}

func (s *ChatHandler) Start(c *gin.Context) {
	var req dto.StartChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := s.chatSvc.StartChat(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *ChatHandler) Send(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := s.chatSvc.SendMessage(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *ChatHandler) Poll(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	cursor, timeout := pollParams(c)

	resp, err := s.pollSvc.PollCustomer(c, token, cursor, timeout)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *ChatHandler) Session(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	resp, err := s.chatSvc.Session(c, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

func (s *ChatHandler) Typing(c *gin.Context) {
	var req dto.TypingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := s.chatSvc.Typing(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *ChatHandler) Rate(c *gin.Context) {
	var req dto.RateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := s.chatSvc.Rate(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// pollParams 轮询通用的游标与超时出价
func pollParams(c *gin.Context) (uint64, int) {
	cursor, err := strconv.ParseUint(c.DefaultQuery("cursor", "0"), 10, 64)
	if err != nil {
		cursor = 0
	}
	timeout, err := strconv.Atoi(c.DefaultQuery("timeout", "0"))
	if err != nil {
		timeout = 0
	}
	return cursor, timeout
}
