package service

import (
	"context"
	"time"

	"Helpdesk/internal/api/config"
	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/model"
	"Helpdesk/internal/pkg/consts"
	"Helpdesk/internal/pkg/rank"
	"Helpdesk/internal/repository"

	"github.com/jinzhu/copier"
	log "log/slog"
)

type QueueService interface {
	// List 仪表盘排队视图：标注、汇总、筛选、排序一次算完
	List(ctx context.Context, operatorID uint64, query, filter, sortMode string) (*dto.QueueResp, error)
	// Fingerprint 当前排队形态指纹，排队轮询的比对基准
	Fingerprint(ctx context.Context) (string, error)
}

type queueServiceImpl struct {
	convRepo     repository.ConversationRepo
	presenceRepo repository.PresenceRepo
	cfg          *config.SupportConfig
}

func NewQueueService(convRepo repository.ConversationRepo, presenceRepo repository.PresenceRepo, cfg *config.SupportConfig) QueueService {
	return &queueServiceImpl{convRepo: convRepo, presenceRepo: presenceRepo, cfg: cfg}
}

func (s *queueServiceImpl) thresholds() rank.Thresholds {
	return rank.Thresholds{
		Warn:   time.Duration(s.cfg.SLA.WarnSeconds) * time.Second,
		Breach: time.Duration(s.cfg.SLA.BreachSeconds) * time.Second,
	}
}

func toRankInput(rows []*model.ConversationQueueRow) []rank.Conversation {
	items := make([]rank.Conversation, 0, len(rows))
	for _, row := range rows {
		items = append(items, rank.Conversation{
			ID:                 row.ID,
			CreatedAt:          row.CreatedAt,
			UnreadCount:        row.UnreadCount,
			OldestUnreadAt:     row.OldestUnreadAt,
			LastMessageAt:      row.LastMessageAt,
			LastMessageID:      row.LastMessageID,
			AssignedOperatorID: row.AssignedToID,
			LastFromOperator:   row.LastDirection == consts.DirectionOperator,
			ContactName:        row.ContactName,
			Subject:            row.Subject,
		})
	}
	return items
}

func (s *queueServiceImpl) List(ctx context.Context, operatorID uint64, query, filter, sortMode string) (*dto.QueueResp, error) {
	// 加载仪表盘本身就是一次在线信号
	if err := s.presenceRepo.TouchSeen(ctx, operatorID); err != nil {
		log.WarnContext(ctx, "刷新在线时间失败", "operator_id", operatorID, "err", err)
	}

	rows, err := s.convRepo.ListOpenAnnotated(ctx, query)
	if err != nil {
		log.ErrorContext(ctx, "排队快照查询失败", "err", err)
		return nil, UnExpectedError
	}

	items := toRankInput(rows)
	now := time.Now()
	annotated := rank.Annotate(items, now, s.thresholds())

	// 汇总基于筛选前的全量快照，筛选只影响列表
	summary := rank.Summarize(annotated, operatorID)
	filtered := rank.Filter(annotated, rank.ParseFilter(filter), operatorID)
	rank.Sort(filtered, rank.ParseSort(sortMode))

	resp := &dto.QueueResp{
		Items:       make([]dto.QueueItemDTO, 0, len(filtered)),
		Fingerprint: rank.Fingerprint(items),
	}
	if err = copier.Copy(&resp.Summary, &summary); err != nil {
		return nil, UnExpectedError
	}

	for _, r := range filtered {
		resp.Items = append(resp.Items, dto.QueueItemDTO{
			ConversationID: r.ID,
			Subject:        r.Subject,
			ContactName:    r.ContactName,
			CreatedAt:      r.CreatedAt,
			UnreadCount:    int(r.UnreadCount),
			OldestUnreadAt: r.OldestUnreadAt,
			LastMessageAt:  r.LastMessageAt,
			LastMessageID:  r.LastMessageID,
			AssignedToID:   r.AssignedOperatorID,
			Mine:           r.AssignedOperatorID != 0 && r.AssignedOperatorID == operatorID,
			WaitSeconds:    int64(r.Wait.Seconds()),
			Tier:           r.Tier.String(),
		})
	}
	return resp, nil
}

func (s *queueServiceImpl) Fingerprint(ctx context.Context) (string, error) {
	rows, err := s.convRepo.ListOpenAnnotated(ctx, "")
	if err != nil {
		return "", err
	}
	return rank.Fingerprint(toRankInput(rows)), nil
}
