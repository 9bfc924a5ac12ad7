package rank

import (
	"fmt"
	"sort"
	"time"
)

// Tier SLA 分级，数值即优先级排序中的序（越小越靠前）
type Tier int

const (
	TierCritical Tier = iota // 等待超过 breach 阈值
	TierUrgent               // 等待超过 warn 阈值
	TierNew                  // 有未读但尚在阈值内
	TierIdle                 // 无未读且无人认领
	TierHandled              // 无未读且已有认领
)

func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierUrgent:
		return "urgent"
	case TierNew:
		return "new"
	case TierIdle:
		return "idle"
	case TierHandled:
		return "handled"
	}
	return "unknown"
}

// Thresholds 分级阈值，配置加载时已保证 Breach > Warn
type Thresholds struct {
	Warn   time.Duration
	Breach time.Duration
}

// Conversation 排序输入：一条开启中会话的标注快照
type Conversation struct {
	ID                 uint64
	CreatedAt          time.Time
	UnreadCount        int64
	OldestUnreadAt     *time.Time
	LastMessageAt      *time.Time
	LastMessageID      uint64
	AssignedOperatorID uint64 // 0 表示未认领
	LastFromOperator   bool
	ContactName        string
	Subject            string
}

// Ranked 标注结果
type Ranked struct {
	Conversation
	Wait time.Duration
	Tier Tier
}

// waitAnchor 等待时间锚点：最老未读 > 最近一条消息 > 会话创建
func waitAnchor(c *Conversation) time.Time {
	if c.UnreadCount > 0 && c.OldestUnreadAt != nil {
		return *c.OldestUnreadAt
	}
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// Annotate 纯函数：为快照补上等待时长与分级，不修改输入
func Annotate(items []Conversation, now time.Time, th Thresholds) []Ranked {
	out := make([]Ranked, 0, len(items))
	for _, c := range items {
		r := Ranked{Conversation: c, Wait: now.Sub(waitAnchor(&c))}
		if r.Wait < 0 {
			r.Wait = 0
		}

		switch {
		case c.UnreadCount == 0 && c.AssignedOperatorID == 0:
			r.Tier = TierIdle
		case c.UnreadCount == 0:
			r.Tier = TierHandled
		case r.Wait >= th.Breach:
			r.Tier = TierCritical
		case r.Wait >= th.Warn:
			r.Tier = TierUrgent
		default:
			r.Tier = TierNew
		}
		out = append(out, r)
	}
	return out
}

// FilterMode 仪表盘筛选
type FilterMode string

const (
	FilterAll        FilterMode = ""
	FilterUnread     FilterMode = "unread"
	FilterSLARisk    FilterMode = "sla_risk"
	FilterMine       FilterMode = "mine"
	FilterUnassigned FilterMode = "unassigned"
)

// ParseFilter 未知取值一律按不过滤处理
func ParseFilter(raw string) FilterMode {
	switch FilterMode(raw) {
	case FilterUnread, FilterSLARisk, FilterMine, FilterUnassigned:
		return FilterMode(raw)
	}
	return FilterAll
}

// Filter 纯谓词筛选，先筛后排
func Filter(items []Ranked, mode FilterMode, operatorID uint64) []Ranked {
	if mode == FilterAll {
		return items
	}
	out := make([]Ranked, 0, len(items))
	for _, r := range items {
		keep := false
		switch mode {
		case FilterUnread:
			keep = r.UnreadCount > 0
		case FilterSLARisk:
			keep = r.Tier == TierCritical || r.Tier == TierUrgent
		case FilterMine:
			keep = r.AssignedOperatorID != 0 && r.AssignedOperatorID == operatorID
		case FilterUnassigned:
			keep = r.AssignedOperatorID == 0
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// SortMode 仪表盘排序
type SortMode string

const (
	SortPriority    SortMode = "priority"
	SortLongestWait SortMode = "longest_wait"
	SortNewest      SortMode = "newest"
	SortOldest      SortMode = "oldest"
)

func ParseSort(raw string) SortMode {
	switch SortMode(raw) {
	case SortLongestWait, SortNewest, SortOldest:
		return SortMode(raw)
	}
	return SortPriority
}

// Sort 稳定排序；priority 模式按 分级升序 > 等待降序 > 创建升序
func Sort(items []Ranked, mode SortMode) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		switch mode {
		case SortLongestWait:
			return a.Wait > b.Wait
		case SortNewest:
			return a.CreatedAt.After(b.CreatedAt)
		case SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			if a.Tier != b.Tier {
				return a.Tier < b.Tier
			}
			if a.Wait != b.Wait {
				return a.Wait > b.Wait
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

// Summary 仪表盘头部聚合
type Summary struct {
	TotalOpen      int   `json:"total_open"`
	NeedingReply   int   `json:"needing_reply"`
	Critical       int   `json:"critical"`
	Mine           int   `json:"mine"`
	AvgWaitSeconds int64 `json:"avg_wait_seconds"`
}

// Summarize 对标注后的全量快照（筛选前）做轻量聚合
func Summarize(items []Ranked, operatorID uint64) Summary {
	s := Summary{TotalOpen: len(items)}
	var waitSum time.Duration
	for _, r := range items {
		if r.UnreadCount > 0 {
			s.NeedingReply++
			waitSum += r.Wait
		}
		if r.Tier == TierCritical {
			s.Critical++
		}
		if r.AssignedOperatorID != 0 && r.AssignedOperatorID == operatorID {
			s.Mine++
		}
	}
	if s.NeedingReply > 0 {
		s.AvgWaitSeconds = int64((waitSum / time.Duration(s.NeedingReply)).Seconds())
	}
	return s
}

// Fingerprint 排队形态指纹，仪表盘轮询用的粗粒度变更判据
func Fingerprint(items []Conversation) string {
	var unreadTotal int64
	var maxConvID, maxMsgID uint64
	for _, c := range items {
		unreadTotal += c.UnreadCount
		if c.ID > maxConvID {
			maxConvID = c.ID
		}
		if c.LastMessageID > maxMsgID {
			maxMsgID = c.LastMessageID
		}
	}
	return fmt.Sprintf("%d:%d:%d:%d", len(items), unreadTotal, maxConvID, maxMsgID)
}
