package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testThresholds = Thresholds{
	Warn:   2 * time.Minute,
	Breach: 10 * time.Minute,
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestAnnotate_Tiers(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		conv Conversation
		want Tier
	}{
		{
			name: "unread beyond breach is critical",
			conv: Conversation{
				ID:             1,
				CreatedAt:      now.Add(-time.Hour),
				UnreadCount:    3,
				OldestUnreadAt: ptrTime(now.Add(-11 * time.Minute)),
			},
			want: TierCritical,
		},
		{
			name: "unread beyond warn is urgent",
			conv: Conversation{
				ID:             2,
				CreatedAt:      now.Add(-time.Hour),
				UnreadCount:    1,
				OldestUnreadAt: ptrTime(now.Add(-3 * time.Minute)),
			},
			want: TierUrgent,
		},
		{
			name: "fresh unread is new",
			conv: Conversation{
				ID:             3,
				CreatedAt:      now.Add(-time.Hour),
				UnreadCount:    1,
				OldestUnreadAt: ptrTime(now.Add(-30 * time.Second)),
			},
			want: TierNew,
		},
		{
			name: "no unread and unassigned is idle",
			conv: Conversation{
				ID:        4,
				CreatedAt: now.Add(-time.Hour),
			},
			want: TierIdle,
		},
		{
			name: "no unread but assigned is handled",
			conv: Conversation{
				ID:                 5,
				CreatedAt:          now.Add(-time.Hour),
				AssignedOperatorID: 7,
			},
			want: TierHandled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Annotate([]Conversation{tt.conv}, now, testThresholds)
			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].Tier)
		})
	}
}

// 从零未读到一条未读，会话只会变得更紧急，不会掉层级
func TestAnnotate_UnreadNeverLowersPriority(t *testing.T) {
	now := time.Now()
	base := Conversation{
		ID:                 1,
		CreatedAt:          now.Add(-time.Hour),
		AssignedOperatorID: 7,
		LastMessageAt:      ptrTime(now.Add(-time.Minute)),
	}

	before := Annotate([]Conversation{base}, now, testThresholds)[0]

	withUnread := base
	withUnread.UnreadCount = 1
	withUnread.OldestUnreadAt = ptrTime(now.Add(-time.Minute))
	after := Annotate([]Conversation{withUnread}, now, testThresholds)[0]

	assert.Less(t, after.Tier, before.Tier)
}

func TestAnnotate_WaitAnchor(t *testing.T) {
	now := time.Now()
	oldest := now.Add(-20 * time.Minute)
	last := now.Add(-5 * time.Minute)

	// 有未读时锚点是最老未读，而不是最近一条消息
	conv := Conversation{
		ID:             1,
		CreatedAt:      now.Add(-time.Hour),
		UnreadCount:    2,
		OldestUnreadAt: &oldest,
		LastMessageAt:  &last,
	}
	out := Annotate([]Conversation{conv}, now, testThresholds)[0]
	assert.InDelta(t, (20 * time.Minute).Seconds(), out.Wait.Seconds(), 1)

	// 无未读时退到最近一条消息
	conv.UnreadCount = 0
	conv.OldestUnreadAt = nil
	out = Annotate([]Conversation{conv}, now, testThresholds)[0]
	assert.InDelta(t, (5 * time.Minute).Seconds(), out.Wait.Seconds(), 1)

	// 没有任何消息时退到创建时间
	conv.LastMessageAt = nil
	out = Annotate([]Conversation{conv}, now, testThresholds)[0]
	assert.InDelta(t, time.Hour.Seconds(), out.Wait.Seconds(), 1)
}

func TestSort_Priority(t *testing.T) {
	now := time.Now()
	items := Annotate([]Conversation{
		{ID: 1, CreatedAt: now.Add(-time.Hour), AssignedOperatorID: 9},
		{ID: 2, CreatedAt: now.Add(-time.Hour), UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-15 * time.Minute))},
		{ID: 3, CreatedAt: now.Add(-time.Hour), UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-3 * time.Minute))},
		{ID: 4, CreatedAt: now.Add(-time.Hour), UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-20 * time.Minute))},
	}, now, testThresholds)

	Sort(items, SortPriority)

	ids := []uint64{items[0].ID, items[1].ID, items[2].ID, items[3].ID}
	// 两个 critical 按等待降序，随后 urgent，handled 永远垫底
	assert.Equal(t, []uint64{4, 2, 3, 1}, ids)
}

func TestSort_Modes(t *testing.T) {
	now := time.Now()
	items := Annotate([]Conversation{
		{ID: 1, CreatedAt: now.Add(-3 * time.Hour), UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-time.Minute))},
		{ID: 2, CreatedAt: now.Add(-1 * time.Hour), UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-30 * time.Minute))},
		{ID: 3, CreatedAt: now.Add(-2 * time.Hour), UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-10 * time.Minute))},
	}, now, testThresholds)

	Sort(items, SortLongestWait)
	assert.Equal(t, uint64(2), items[0].ID)

	Sort(items, SortNewest)
	assert.Equal(t, uint64(2), items[0].ID)

	Sort(items, SortOldest)
	assert.Equal(t, uint64(1), items[0].ID)
}

func TestFilter(t *testing.T) {
	now := time.Now()
	items := Annotate([]Conversation{
		{ID: 1, CreatedAt: now, UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-15 * time.Minute)), AssignedOperatorID: 7},
		{ID: 2, CreatedAt: now, UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-time.Minute))},
		{ID: 3, CreatedAt: now, AssignedOperatorID: 8},
		{ID: 4, CreatedAt: now},
	}, now, testThresholds)

	tests := []struct {
		mode       FilterMode
		operatorID uint64
		wantIDs    []uint64
	}{
		{FilterAll, 7, []uint64{1, 2, 3, 4}},
		{FilterUnread, 7, []uint64{1, 2}},
		{FilterSLARisk, 7, []uint64{1}},
		{FilterMine, 7, []uint64{1}},
		{FilterUnassigned, 7, []uint64{2, 4}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got := Filter(items, tt.mode, tt.operatorID)
			ids := make([]uint64, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestParseFilterAndSort_UnknownFallsBack(t *testing.T) {
	assert.Equal(t, FilterAll, ParseFilter("bogus"))
	assert.Equal(t, FilterMine, ParseFilter("mine"))
	assert.Equal(t, SortPriority, ParseSort("bogus"))
	assert.Equal(t, SortOldest, ParseSort("oldest"))
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	items := Annotate([]Conversation{
		{ID: 1, CreatedAt: now, UnreadCount: 1, OldestUnreadAt: ptrTime(now.Add(-12 * time.Minute)), AssignedOperatorID: 7},
		{ID: 2, CreatedAt: now, UnreadCount: 2, OldestUnreadAt: ptrTime(now.Add(-4 * time.Minute))},
		{ID: 3, CreatedAt: now, AssignedOperatorID: 7},
	}, now, testThresholds)

	s := Summarize(items, 7)
	assert.Equal(t, 3, s.TotalOpen)
	assert.Equal(t, 2, s.NeedingReply)
	assert.Equal(t, 1, s.Critical)
	assert.Equal(t, 2, s.Mine)
	assert.InDelta(t, 8*60, s.AvgWaitSeconds, 2)
}

func TestFingerprint(t *testing.T) {
	now := time.Now()
	items := []Conversation{
		{ID: 5, CreatedAt: now, UnreadCount: 2, LastMessageID: 40},
		{ID: 9, CreatedAt: now, UnreadCount: 1, LastMessageID: 37},
	}

	fp := Fingerprint(items)
	assert.Equal(t, "2:3:9:40", fp)

	// 任何分量变化都要反映到指纹
	items[1].LastMessageID = 41
	assert.NotEqual(t, fp, Fingerprint(items))

	assert.Equal(t, "0:0:0:0", Fingerprint(nil))
}
