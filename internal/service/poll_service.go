package service

import (
	"context"
	"strconv"
	"time"

	"Helpdesk/internal/api/config"
	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/model"
	"Helpdesk/internal/pkg/consts"
	"Helpdesk/internal/pkg/signal"
	"Helpdesk/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	log "log/slog"
)

// pollBatchLimit 单次轮询最多交付的消息数，超出部分由下一轮游标续拉
const pollBatchLimit = 50

type PollService interface {
	// PollCustomer 访客侧长轮询，凭 token 定位会话
	PollCustomer(ctx context.Context, token string, cursor uint64, timeoutSec int) (*dto.PollResp, error)
	// PollOperator 客服侧对单个会话的长轮询
	PollOperator(ctx context.Context, operatorID, convID, cursor uint64, timeoutSec int) (*dto.PollResp, error)
	// PollQueue 仪表盘对排队指纹的长轮询，只回“变没变”
	PollQueue(ctx context.Context, operatorID uint64, fingerprint string, timeoutSec int) (*dto.QueuePollResp, error)
}

type pollServiceImpl struct {
	convRepo     repository.ConversationRepo
	msgRepo      repository.MessageRepo
	presenceRepo repository.PresenceRepo
	queue        QueueService
	tracker      *signal.Tracker
	typing       *signal.Typing
	governor     *signal.Governor
	cfg          *config.SupportConfig

	// sleep 可在测试里替换成快进
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPollService(
	convRepo repository.ConversationRepo,
	msgRepo repository.MessageRepo,
	presenceRepo repository.PresenceRepo,
	queue QueueService,
	tracker *signal.Tracker,
	typing *signal.Typing,
	governor *signal.Governor,
	cfg *config.SupportConfig,
) PollService {
	return &pollServiceImpl{
		convRepo:     convRepo,
		msgRepo:      msgRepo,
		presenceRepo: presenceRepo,
		queue:        queue,
		tracker:      tracker,
		typing:       typing,
		governor:     governor,
		cfg:          cfg,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// clampTimeout 客户端出价只减不加：0 或超限都收敛到服务端硬上限
func (s *pollServiceImpl) clampTimeout(timeoutSec int) time.Duration {
	max := time.Duration(s.cfg.Poll.MaxTimeoutSeconds) * time.Second
	if timeoutSec <= 0 {
		return max
	}
	d := time.Duration(timeoutSec) * time.Second
	if d > max {
		return max
	}
	return d
}

func (s *pollServiceImpl) interval() time.Duration {
	return time.Duration(s.cfg.Poll.IntervalMs) * time.Millisecond
}

func (s *pollServiceImpl) PollCustomer(ctx context.Context, token string, cursor uint64, timeoutSec int) (*dto.PollResp, error) {
	conv, err := s.convRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, UnExpectedError
	}
	return s.pollConversation(ctx, conv, cursor, timeoutSec, consts.TypingRoleCustomer, "customer:"+token)
}

func (s *pollServiceImpl) PollOperator(ctx context.Context, operatorID, convID, cursor uint64, timeoutSec int) (*dto.PollResp, error) {
	conv, err := s.convRepo.GetByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, UnExpectedError
	}
	clientKey := "op:" + strconv.FormatUint(operatorID, 10)
	return s.pollConversation(ctx, conv, cursor, timeoutSec, consts.TypingRoleOperator, clientKey)
}

// pollConversation 共享交付环。四种归宿：新消息、会话关闭、空超时、存储错误。
// 信号只是省查询的判据，首轮永远查一次存储
func (s *pollServiceImpl) pollConversation(ctx context.Context, conv *model.Conversation, cursor uint64, timeoutSec int, selfRole, clientKey string) (*dto.PollResp, error) {
	timeout := s.clampTimeout(timeoutSec)
	token, err := s.governor.Enter(ctx, clientKey, strconv.FormatUint(conv.ID, 10), timeout)
	if err != nil {
		if errors.Is(err, signal.ErrPollBusy) {
			return nil, ErrPollBusy
		}
		log.ErrorContext(ctx, "轮询进场失败", "conversation_id", conv.ID, "err", err)
		return nil, UnExpectedError
	}
	defer s.governor.Exit(ctx, token)

	peerRole := consts.TypingRoleOperator
	if selfRole == consts.TypingRoleOperator {
		peerRole = consts.TypingRoleCustomer
	}

	deadline := time.Now().Add(timeout)
	lastSig := ""
	for {
		sig, err := s.tracker.Current(ctx, conv.ID)
		if err != nil {
			log.ErrorContext(ctx, "读取会话签名失败", "conversation_id", conv.ID, "err", err)
			return nil, UnExpectedError
		}

		if sig != lastSig {
			lastSig = sig

			msgs, err := s.msgRepo.ListAfter(ctx, conv.ID, cursor, pollBatchLimit)
			if err != nil {
				log.ErrorContext(ctx, "轮询拉取消息失败", "conversation_id", conv.ID, "err", err)
				return nil, UnExpectedError
			}
			if len(msgs) > 0 {
				return s.buildPollResp(ctx, conv.ID, msgs, cursor, peerRole, false), nil
			}

			// 签名变了却没有新消息，多半是关闭或重开动了会话
			open, err := s.convRepo.IsOpen(ctx, conv.ID)
			if err != nil {
				return nil, UnExpectedError
			}
			if !open {
				return s.buildPollResp(ctx, conv.ID, nil, cursor, peerRole, true), nil
			}
		}

		// 最后一段睡眠按剩余时间截短，空超时不得早于期限返回
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return s.buildPollResp(ctx, conv.ID, nil, cursor, peerRole, false), nil
		}
		wait := s.interval()
		if remaining < wait {
			wait = remaining
		}
		if err := s.sleep(ctx, wait); err != nil {
			// 客户端掐断连接属于正常结束，按当前游标空手而归
			return s.buildPollResp(context.WithoutCancel(ctx), conv.ID, nil, cursor, peerRole, false), nil
		}
	}
}

func (s *pollServiceImpl) buildPollResp(ctx context.Context, convID uint64, msgs []*model.Message, cursor uint64, peerRole string, closed bool) *dto.PollResp {
	resp := &dto.PollResp{
		Messages: toMessageDTOs(msgs),
		Cursor:   cursor,
		Closed:   closed,
	}
	if len(msgs) > 0 {
		resp.Cursor = msgs[len(msgs)-1].ID
	}
	typing, err := s.typing.Active(ctx, convID, peerRole)
	if err == nil {
		resp.PeerTyping = typing
	}
	return resp
}

// PollQueue 排队级长轮询。先看排队签名这个廉价判据，
// 签名变了才重算指纹，指纹与客户端持有值不同才算“有变化”
func (s *pollServiceImpl) PollQueue(ctx context.Context, operatorID uint64, fingerprint string, timeoutSec int) (*dto.QueuePollResp, error) {
	timeout := s.clampTimeout(timeoutSec)
	clientKey := "op:" + strconv.FormatUint(operatorID, 10)
	token, err := s.governor.Enter(ctx, clientKey, consts.QueuePollScope, timeout)
	if err != nil {
		if errors.Is(err, signal.ErrPollBusy) {
			return nil, ErrPollBusy
		}
		return nil, UnExpectedError
	}
	defer s.governor.Exit(ctx, token)

	// 排队轮询本身就是仪表盘还开着的证据
	if err = s.presenceRepo.TouchSeen(ctx, operatorID); err != nil {
		log.WarnContext(ctx, "刷新在线时间失败", "operator_id", operatorID, "err", err)
	}

	deadline := time.Now().Add(timeout)
	lastSig := ""
	current := fingerprint
	for {
		sig, err := s.tracker.CurrentQueue(ctx)
		if err != nil {
			return nil, UnExpectedError
		}
		if sig == "" {
			// 签名缺失时重建，避免后续每轮都空转重算指纹
			if err = s.tracker.TouchQueue(ctx); err != nil {
				return nil, UnExpectedError
			}
			sig, _ = s.tracker.CurrentQueue(ctx)
		}

		if sig != lastSig {
			lastSig = sig
			current, err = s.queue.Fingerprint(ctx)
			if err != nil {
				return nil, UnExpectedError
			}
			if current != fingerprint {
				return &dto.QueuePollResp{Changed: true, Fingerprint: current}, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &dto.QueuePollResp{Fingerprint: current}, nil
		}
		wait := s.interval()
		if remaining < wait {
			wait = remaining
		}
		if err := s.sleep(ctx, wait); err != nil {
			return &dto.QueuePollResp{Fingerprint: current}, nil
		}
	}
}
