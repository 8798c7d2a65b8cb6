package memory

import (
	"context"
	"sort"
	"sync"

	"seva/internal/messages/repository"
	mongodb "seva/pkg/db/mongo"
	"seva/pkg/model"
)

// MessageStore keeps messages in insertion order, which doubles as the
// tiebreak for equal timestamps.
type MessageStore struct {
	mu       sync.RWMutex
	messages []*model.Message
	ids      map[string]struct{}
}

func NewMessageStore() *MessageStore {
	return &MessageStore{ids: make(map[string]struct{})}
}

func (s *MessageStore) Create(ctx context.Context, msg *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = mongodb.NewID()
	}
	if _, ok := s.ids[msg.ID]; ok {
		return nil
	}
	s.ids[msg.ID] = struct{}{}
	c := *msg
	s.messages = append(s.messages, &c)
	return nil
}

func involves(m *model.Message, a, b string) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}

func (s *MessageStore) FindConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var thread []*model.Message
	for _, m := range s.messages {
		if involves(m, userID, otherUserID) {
			c := *m
			thread = append(thread, &c)
		}
	}
	sort.SliceStable(thread, func(i, j int) bool { return thread[i].CreatedAt.Before(thread[j].CreatedAt) })

	if limit > 0 && len(thread) > limit {
		thread = thread[len(thread)-limit:]
	}
	if thread == nil {
		thread = make([]*model.Message, 0)
	}
	return thread, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, recipientID, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, m := range s.messages {
		if m.RecipientID == recipientID && m.SenderID == senderID && !m.Read {
			m.Read = true
			updated++
		}
	}
	return updated, nil
}

func (s *MessageStore) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, m := range s.messages {
		if m.RecipientID == recipientID && !m.Read {
			count++
		}
	}
	return count, nil
}

func (s *MessageStore) Conversations(ctx context.Context, userID string) ([]repository.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCounterpart := make(map[string]*repository.ConversationSummary)
	for _, m := range s.messages {
		var other string
		switch userID {
		case m.SenderID:
			other = m.RecipientID
		case m.RecipientID:
			other = m.SenderID
		default:
			continue
		}

		summary, ok := byCounterpart[other]
		if !ok {
			summary = &repository.ConversationSummary{CounterpartID: other}
			byCounterpart[other] = summary
		}
		if summary.LastMessage == nil || !m.CreatedAt.Before(summary.LastMessage.CreatedAt) {
			c := *m
			summary.LastMessage = &c
		}
		if m.RecipientID == userID && !m.Read {
			summary.UnreadCount++
		}
	}

	out := make([]repository.ConversationSummary, 0, len(byCounterpart))
	for _, summary := range byCounterpart {
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}
