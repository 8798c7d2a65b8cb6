package memory

import (
	"context"
	"testing"
	"time"

	"seva/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(t *testing.T, s *MessageStore, from, to, content string, at time.Time) *model.Message {
	t.Helper()
	m := &model.Message{SenderID: from, RecipientID: to, Content: content, CreatedAt: at}
	require.NoError(t, s.Create(context.Background(), m))
	return m
}

func TestMessageStore_ConversationOrderAndRead(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()

	first := send(t, s, "alice", "bob", "hi", t0)
	second := send(t, s, "bob", "alice", "hello", t0)
	third := send(t, s, "alice", "bob", "soup?", t0.Add(time.Second))
	send(t, s, "carol", "bob", "unrelated", t0)

	thread, err := s.FindConversation(ctx, "bob", "alice", 50)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{thread[0].ID, thread[1].ID, thread[2].ID})

	latest, _ := s.FindConversation(ctx, "bob", "alice", 2)
	assert.Equal(t, second.ID, latest[0].ID)
	assert.Equal(t, third.ID, latest[1].ID)

	unread, _ := s.CountUnread(ctx, "bob")
	assert.Equal(t, int64(3), unread)

	updated, err := s.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	unread, _ = s.CountUnread(ctx, "bob")
	assert.Equal(t, int64(1), unread, "carol's message stays unread")

	again, _ := s.MarkRead(ctx, "bob", "alice")
	assert.Equal(t, int64(0), again)
}

func TestMessageStore_Conversations(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()

	send(t, s, "alice", "bob", "hi", t0)
	send(t, s, "carol", "bob", "bread left?", t0.Add(time.Minute))
	send(t, s, "bob", "alice", "yes", t0.Add(2*time.Minute))

	convs, err := s.Conversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, "alice", convs[0].CounterpartID)
	assert.Equal(t, "yes", convs[0].LastMessage.Content)
	assert.Equal(t, 1, convs[0].UnreadCount)

	assert.Equal(t, "carol", convs[1].CounterpartID)
	assert.Equal(t, 1, convs[1].UnreadCount)
}

func TestMessageStore_EmptyConversation(t *testing.T) {
	thread, err := NewMessageStore().FindConversation(context.Background(), "a", "b", 10)
	require.NoError(t, err)
	assert.NotNil(t, thread)
	assert.Empty(t, thread)
}

func TestMessageStore_CreateSameIDTwice(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	m := &model.Message{ID: "65f2a1b2c3d4e5f601234567", SenderID: "alice", RecipientID: "bob", Content: "hi", CreatedAt: t0}

	require.NoError(t, s.Create(ctx, m))
	require.NoError(t, s.Create(ctx, m))

	thread, err := s.FindConversation(ctx, "alice", "bob", 50)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, m.ID, thread[0].ID)
}
