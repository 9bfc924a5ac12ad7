package service

import (
	"github.com/pkg/errors"
)

// 业务错误统一在此定义，handler 层经 response.Error 映射为业务码
var (
	ErrParamInvalid         = errors.New("请求参数不合法")
	ErrMessageEmpty         = errors.New("消息内容不能为空")
	ErrRatingNeedReason     = errors.New("低分评价需要填写原因")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrConversationClosed   = errors.New("会话已关闭")
	ErrConversationOpen     = errors.New("会话尚未关闭")
	ErrRatingExists         = errors.New("该会话已评价过")
	ErrNoAgent              = errors.New("该会话没有可评价的客服")
	ErrPollBusy             = errors.New("已有轮询在途，请勿重复发起")
	UnExpectedError         = errors.New("系统繁忙，请稍后再试")
)

// ErrorMap 业务错误到业务码的映射。
// 42901 专属于并发拒绝：客户端据此退避重试，而不是当成空超时
var ErrorMap = map[error]int{
	ErrParamInvalid:         40000,
	ErrMessageEmpty:         40001,
	ErrRatingNeedReason:     40002,
	ErrConversationNotFound: 40400,
	ErrConversationClosed:   40900,
	ErrConversationOpen:     40901,
	ErrRatingExists:         40902,
	ErrNoAgent:              40903,
	ErrPollBusy:             42901,
	UnExpectedError:         50000,
}
