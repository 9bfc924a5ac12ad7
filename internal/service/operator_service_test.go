package service

import (
	"context"
	"testing"

	"Helpdesk/internal/api/dto"
	"Helpdesk/internal/pkg/consts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenConversation_AssignsAndMarksRead(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.seedConversation("张三", "09123456789")
	f.seedCustomerMessage(conv.ID, "第一条")
	f.seedCustomerMessage(conv.ID, "第二条")

	resp, err := f.operator.OpenConversation(ctx, 7, conv.ID, "127.0.0.1", "agent")
	require.NoError(t, err)

	assert.Equal(t, uint64(7), resp.AssignedToID)
	assert.Equal(t, "张三", resp.ContactName)
	assert.Len(t, resp.Messages, 2)

	// 打开即认领未读
	unread, err := msgRepoAdapter{f.store}.UnreadTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	// 登记正在查看，推送排除依赖这个事实
	presence, err := f.store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, presence.ActiveSessionID)

	assert.Contains(t, f.store.auditActions(), consts.AuditActionOpen)

	// 会话视图随带操作流水，刚写入的 open 条目也在其中
	require.NotEmpty(t, resp.Audits)
	assert.Equal(t, consts.AuditActionOpen, resp.Audits[0].Action)
	assert.Equal(t, uint64(7), resp.Audits[0].OperatorID)
}

// 软认领不抢已有归属，真正回复才转移
func TestOpenConversation_DoesNotStealAssignment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.seedConversation("张三", "09123456789")

	_, err := f.operator.OpenConversation(ctx, 7, conv.ID, "", "")
	require.NoError(t, err)
	_, err = f.operator.OpenConversation(ctx, 8, conv.ID, "", "")
	require.NoError(t, err)

	stored, err := f.store.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), stored.AssignedToID)

	// 8 号实际应答后归属转移，但首位应答者不变
	_, err = f.operator.SendMessage(ctx, 8, "小李", &dto.OperatorSendReq{ConversationID: conv.ID, Body: "您好"}, "", "")
	require.NoError(t, err)

	stored, err = f.store.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), stored.AssignedToID)
	assert.Equal(t, uint64(7), stored.OperatorID)
}

func TestOperatorSendMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.seedConversation("张三", "09123456789")

	resp, err := f.operator.SendMessage(ctx, 7, "小王", &dto.OperatorSendReq{ConversationID: conv.ID, Body: "有什么可以帮您"}, "", "")
	require.NoError(t, err)
	assert.NotZero(t, resp.MessageID)

	msgs, err := msgRepoAdapter{f.store}.ListAfter(ctx, conv.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int8(consts.DirectionOperator), msgs[0].Direction)
	assert.Equal(t, "小王", msgs[0].SenderName)
	assert.Equal(t, uint64(7), msgs[0].SenderID)

	assert.Contains(t, f.store.auditActions(), consts.AuditActionSend)

	// 关闭后不能再发
	require.NoError(t, f.operator.Close(ctx, 7, conv.ID, "", ""))
	_, err = f.operator.SendMessage(ctx, 7, "小王", &dto.OperatorSendReq{ConversationID: conv.ID, Body: "在吗"}, "", "")
	assert.ErrorIs(t, err, ErrConversationClosed)
}

func TestCloseAndReopen(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.seedConversation("张三", "09123456789")
	f.seedCustomerMessage(conv.ID, "咨询")

	require.NoError(t, f.operator.Close(ctx, 7, conv.ID, "", ""))

	stored, err := f.store.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOpen)
	assert.Equal(t, uint64(7), stored.ClosedByID)
	assert.NotNil(t, stored.ClosedAt)

	// 关单顺带清掉残留未读
	unread, err := msgRepoAdapter{f.store}.UnreadTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	// 重复关闭与重复重开都要报错
	assert.ErrorIs(t, f.operator.Close(ctx, 7, conv.ID, "", ""), ErrConversationClosed)

	require.NoError(t, f.operator.Reopen(ctx, 7, conv.ID, "", ""))
	stored, err = f.store.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOpen)
	assert.Nil(t, stored.ClosedAt)

	assert.ErrorIs(t, f.operator.Reopen(ctx, 7, conv.ID, "", ""), ErrConversationOpen)

	actions := f.store.auditActions()
	assert.Contains(t, actions, consts.AuditActionClose)
	assert.Contains(t, actions, consts.AuditActionReopen)
}

func TestHeartbeat_ClearsClosedViewing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.seedConversation("张三", "09123456789")
	require.NoError(t, f.store.Close(ctx, conv.ID, 7))

	other := f.seedConversation("李四", "09351112233")
	f.seedCustomerMessage(other.ID, "还在吗")

	resp, err := f.operator.Heartbeat(ctx, 7, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.OnlineOperators)
	assert.Equal(t, int64(1), resp.UnreadTotal)

	// 声称在看的会话已关闭，登记必须清零
	presence, err := f.store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), presence.ActiveSessionID)
}

func TestOperatorTyping_RequiresOpenConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conv := f.seedConversation("张三", "09123456789")

	require.NoError(t, f.operator.Typing(ctx, 7, &dto.OperatorTypingReq{ConversationID: conv.ID, Active: true}))

	require.NoError(t, f.store.Close(ctx, conv.ID, 7))
	err := f.operator.Typing(ctx, 7, &dto.OperatorTypingReq{ConversationID: conv.ID, Active: true})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
