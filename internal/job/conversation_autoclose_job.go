package job

import (
	"Helpdesk/internal/api/config"
	"Helpdesk/internal/model"
	"Helpdesk/internal/pkg/consts"
	"Helpdesk/internal/pkg/signal"
	"Helpdesk/internal/repository"
	"context"
	log "log/slog"
	"time"
)

// ConversationAutoCloseJob 定时关掉长期没有任何消息的开启中会话。
// 关闭人记 0 表示系统动作，审计里留 reason 以便与人工关闭区分
type ConversationAutoCloseJob struct {
	convRepo  repository.ConversationRepo
	msgRepo   repository.MessageRepo
	auditRepo repository.AuditRepo
	tracker   *signal.Tracker
	cfg       *config.SupportConfig
}

func NewConversationAutoCloseJob(
	convRepo repository.ConversationRepo,
	msgRepo repository.MessageRepo,
	auditRepo repository.AuditRepo,
	tracker *signal.Tracker,
	cfg *config.SupportConfig,
) *ConversationAutoCloseJob {
	return &ConversationAutoCloseJob{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		auditRepo: auditRepo,
		tracker:   tracker,
		cfg:       cfg,
	}
}

func (s *ConversationAutoCloseJob) Run() {
	ctx := context.Background()
	log.Info("start conversation autoclose job")

	idleBefore := time.Now().Add(-time.Duration(s.cfg.Janitor.IdleCloseHours) * time.Hour)
	convs, err := s.convRepo.ListIdleOpen(ctx, idleBefore)
	if err != nil {
		log.Error("failed to list idle conversations", "err", err)
		return
	}
	if len(convs) == 0 {
		return
	}

	count := 0
	for _, conv := range convs {
		if err = s.convRepo.Close(ctx, conv.ID, 0); err != nil {
			log.Error("failed to close idle conversation", "conversation_id", conv.ID, "err", err)
			continue
		}
		entry := &model.AuditLog{
			Action:         consts.AuditActionClose,
			ConversationID: conv.ID,
			Metadata:       `{"reason":"idle"}`,
		}
		if err = s.auditRepo.Append(ctx, entry); err != nil {
			log.Error("failed to append autoclose audit", "conversation_id", conv.ID, "err", err)
		}

		// 会话签名也要刷，让还挂在这个会话上的访客轮询当轮看到 closed
		maxID, merr := s.msgRepo.MaxID(ctx, conv.ID)
		if merr != nil {
			log.Warn("failed to query max message id", "conversation_id", conv.ID, "err", merr)
		}
		if _, terr := s.tracker.Touch(ctx, conv.ID, maxID); terr != nil {
			log.Warn("failed to touch conversation signature", "conversation_id", conv.ID, "err", terr)
		}
		count++
	}

	if count > 0 {
		if err = s.tracker.TouchQueue(ctx); err != nil {
			log.Warn("failed to touch queue signature", "err", err)
		}
		log.Info("conversation autoclose job finished", "closed_count", count)
	}
}
