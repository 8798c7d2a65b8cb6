package repository_test

import (
	"context"
	"testing"
	"time"

	"seva/internal/messages/repository"
	"seva/internal/storage/mongotest"
	mongodb "seva/pkg/db/mongo"
	"seva/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, repo repository.MessageRepository, msgs ...*model.Message) {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, repo.Create(context.Background(), m))
		require.NotEmpty(t, m.ID)
	}
}

func msg(from, to, content string, at time.Time) *model.Message {
	return &model.Message{SenderID: from, RecipientID: to, Content: content, CreatedAt: at}
}

func TestMongoMessage_ConversationKeepsLatestOldestFirst(t *testing.T) {
	repo := repository.NewMongoMessageRepository(mongotest.Config(t))
	ctx := context.Background()
	t0 := mongodb.Now()

	seed(t, repo,
		msg("alice", "bob", "one", t0),
		msg("bob", "alice", "two", t0.Add(time.Second)),
		msg("alice", "bob", "three", t0.Add(2*time.Second)),
		msg("alice", "carol", "elsewhere", t0.Add(3*time.Second)),
	)

	got, err := repo.FindConversation(ctx, "bob", "alice", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Content)
	assert.Equal(t, "three", got[1].Content)
}

func TestMongoMessage_ConversationTiesFollowInsertOrder(t *testing.T) {
	repo := repository.NewMongoMessageRepository(mongotest.Config(t))
	t0 := mongodb.Now()

	seed(t, repo,
		msg("alice", "bob", "first", t0),
		msg("alice", "bob", "second", t0),
		msg("alice", "bob", "third", t0),
	)

	got, err := repo.FindConversation(context.Background(), "alice", "bob", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].Content, got[1].Content, got[2].Content})
}

func TestMongoMessage_MarkReadAndUnread(t *testing.T) {
	repo := repository.NewMongoMessageRepository(mongotest.Config(t))
	ctx := context.Background()
	t0 := mongodb.Now()

	seed(t, repo,
		msg("alice", "bob", "a", t0),
		msg("alice", "bob", "b", t0.Add(time.Second)),
		msg("carol", "bob", "c", t0.Add(2*time.Second)),
		msg("bob", "alice", "d", t0.Add(3*time.Second)),
	)

	unread, err := repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	updated, err := repo.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	updated, err = repo.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Zero(t, updated)

	unread, err = repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	unread, err = repo.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread, "marking read only touches the recipient's side")
}

func TestMongoMessage_Conversations(t *testing.T) {
	repo := repository.NewMongoMessageRepository(mongotest.Config(t))
	t0 := mongodb.Now()

	seed(t, repo,
		msg("bob", "alice", "from bob", t0),
		msg("carol", "alice", "from carol", t0.Add(time.Second)),
		msg("alice", "carol", "reply", t0.Add(2*time.Second)),
	)

	got, err := repo.Conversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "carol", got[0].CounterpartID, "newest activity first")
	assert.Equal(t, "reply", got[0].LastMessage.Content)
	assert.Equal(t, 1, got[0].UnreadCount)

	assert.Equal(t, "bob", got[1].CounterpartID)
	assert.Equal(t, 1, got[1].UnreadCount)
}

func TestMongoMessage_CreateSameIDTwice(t *testing.T) {
	repo := repository.NewMongoMessageRepository(mongotest.Config(t))
	ctx := context.Background()
	m := msg("alice", "bob", "hi", mongodb.Now())
	m.ID = mongodb.NewID()

	require.NoError(t, repo.Create(ctx, m))
	require.NoError(t, repo.Create(ctx, m))

	thread, err := repo.FindConversation(ctx, "bob", "alice", 50)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, m.ID, thread[0].ID)
}
