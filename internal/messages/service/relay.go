package service

import (
	"context"
	"errors"
	"time"

	"seva/internal/events"
	"seva/internal/messages/repository"
	"seva/internal/messages/validator"
	userserrors "seva/internal/users/errors"
	usersrepo "seva/internal/users/repository"
	"seva/pkg/config"
	"seva/pkg/db"
	mongodb "seva/pkg/db/mongo"
	apperrors "seva/pkg/errors"
	"seva/pkg/model"
	"seva/pkg/protocol"
	"seva/pkg/sanitizer"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

// SendRequest carries one outbound message. Origin is the sender's live
// connection, nil on the REST path.
type SendRequest struct {
	SenderID    string
	SenderName  string
	RecipientID string
	Content     string
	Origin      protocol.Emitter
}

type MessageRelay interface {
	// Send persists the message before any delivery. Recipients that are
	// offline read it later from History.
	Send(ctx context.Context, req SendRequest) (*model.Message, error)
	MarkRead(ctx context.Context, userID, otherUserID string) (int64, error)
	// History returns the thread and then marks the counterpart's messages
	// read. The returned read flags are the ones from before the update.
	History(ctx context.Context, userID, otherUserID string, limit int) (*model.ConversationHistory, error)
	Conversations(ctx context.Context, userID string) ([]model.Conversation, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// Deliverer pushes frames to every live handle of a user.
type Deliverer interface {
	SendToUser(userID, event string, payload any) int
}

type messageRelay struct {
	repo      repository.MessageRepository
	users     usersrepo.UserRepository
	deliverer Deliverer
	events    events.Publisher
	validator *validator.MessageValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewMessageRelay(
	repo repository.MessageRepository,
	users usersrepo.UserRepository,
	deliverer Deliverer,
	publisher events.Publisher,
	validator *validator.MessageValidator,
	cfg *config.Config,
) MessageRelay {
	if publisher == nil {
		publisher = events.Noop()
	}
	return &messageRelay{
		repo:      repo,
		users:     users,
		deliverer: deliverer,
		events:    publisher,
		validator: validator,
		cfg:       cfg,
		now:       mongodb.Now,
	}
}

func (s *messageRelay) Send(ctx context.Context, req SendRequest) (*model.Message, error) {
	if req.SenderID == "" {
		return nil, apperrors.Unauthorized("Authenticated sender is required")
	}

	input := &model.SendMessageInput{
		RecipientID: sanitizer.Line(req.RecipientID),
		Content:     sanitizer.Text(req.Content),
	}
	if err := s.validator.Validate(req.SenderID, input); err != nil {
		s.cfg.Log.Warn("Message validation failed", "sender_id", req.SenderID, "error", err)
		return nil, apperrors.Validation("Message validation failed", map[string]any{"errors": err})
	}

	if _, err := s.users.FindByID(ctx, input.RecipientID); err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", input.RecipientID)
		}
		s.cfg.Log.Error("Failed to look up recipient", "recipient_id", input.RecipientID, "error", err)
		return nil, apperrors.Persistence("Failed to send message", err)
	}

	msg := &model.Message{
		ID:          mongodb.NewID(),
		SenderID:    req.SenderID,
		RecipientID: input.RecipientID,
		Content:     input.Content,
		Read:        false,
		CreatedAt:   s.now(),
	}
	if err := db.RetryOnce(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, msg)
	}); err != nil {
		s.cfg.Log.Error("Failed to save message", "sender_id", req.SenderID, "recipient_id", msg.RecipientID, "error", err)
		return nil, apperrors.Persistence("Failed to send message", err)
	}

	delivered := s.deliverer.SendToUser(msg.RecipientID, protocol.EventNewMessage, protocol.NewMessagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		SenderName: req.SenderName,
		Content:    msg.Content,
		Timestamp:  msg.CreatedAt,
	})

	if req.Origin != nil {
		if err := req.Origin.Emit(protocol.EventMessageSent, SentPayload(msg)); err != nil {
			s.cfg.Log.Warn("Failed to acknowledge message to sender", "id", msg.ID, "error", err)
		}
	}

	s.events.Publish(ctx, events.Event{
		Type:       events.TypeMessageSent,
		Key:        conversationKey(msg.SenderID, msg.RecipientID),
		ActorID:    msg.SenderID,
		OccurredAt: msg.CreatedAt,
		Payload:    msg,
	})

	s.cfg.Log.Info("Message relayed",
		"id", msg.ID,
		"sender_id", msg.SenderID,
		"recipient_id", msg.RecipientID,
		"delivered", delivered,
	)
	return msg, nil
}

// SentPayload is the acknowledgement the sender receives, on the live
// channel or as the REST response body.
func SentPayload(msg *model.Message) protocol.MessageSentPayload {
	return protocol.MessageSentPayload{
		ID:          msg.ID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
		Timestamp:   msg.CreatedAt,
	}
}

// conversationKey is the same for both directions of a thread.
func conversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func (s *messageRelay) MarkRead(ctx context.Context, userID, otherUserID string) (int64, error) {
	if otherUserID == "" {
		return 0, apperrors.InvalidInput("Other user ID cannot be empty")
	}

	var updated int64
	err := db.RetryOnce(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.MarkRead(ctx, userID, otherUserID)
		return err
	})
	if err != nil {
		s.cfg.Log.Error("Failed to mark messages read", "user_id", userID, "other_user_id", otherUserID, "error", err)
		return 0, apperrors.Persistence("Failed to mark messages as read", err)
	}
	return updated, nil
}

func (s *messageRelay) History(ctx context.Context, userID, otherUserID string, limit int) (*model.ConversationHistory, error) {
	if otherUserID == "" {
		return nil, apperrors.InvalidInput("Other user ID cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	other, err := s.users.FindByID(ctx, otherUserID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", otherUserID)
		}
		s.cfg.Log.Error("Failed to look up conversation partner", "other_user_id", otherUserID, "error", err)
		return nil, apperrors.Persistence("Failed to retrieve messages", err)
	}

	messages, err := s.repo.FindConversation(ctx, userID, otherUserID, limit)
	if err != nil {
		s.cfg.Log.Error("Failed to retrieve messages", "user_id", userID, "other_user_id", otherUserID, "error", err)
		return nil, apperrors.Persistence("Failed to retrieve messages", err)
	}

	if _, err := s.MarkRead(ctx, userID, otherUserID); err != nil {
		s.cfg.Log.Warn("Conversation opened but not marked read", "user_id", userID, "other_user_id", otherUserID, "error", err)
	}

	return &model.ConversationHistory{
		User:     &model.User{ID: other.ID, Name: other.Name, Email: other.Email},
		Messages: messages,
	}, nil
}

func (s *messageRelay) Conversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	summaries, err := s.repo.Conversations(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list conversations", "user_id", userID, "error", err)
		return nil, apperrors.Persistence("Failed to retrieve conversations", err)
	}

	ids := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		ids = append(ids, summary.CounterpartID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Warn("Failed to resolve conversation names", "user_id", userID, "error", err)
		users = map[string]*model.User{}
	}

	conversations := make([]model.Conversation, 0, len(summaries))
	for _, summary := range summaries {
		c := model.Conversation{
			UserID:      summary.CounterpartID,
			UnreadCount: summary.UnreadCount,
		}
		if summary.LastMessage != nil {
			c.LastMessage = summary.LastMessage.Content
			c.Timestamp = summary.LastMessage.CreatedAt
		}
		if u, ok := users[summary.CounterpartID]; ok {
			c.Name = u.Name
			c.Email = u.Email
		}
		conversations = append(conversations, c)
	}
	return conversations, nil
}

func (s *messageRelay) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to count unread messages", "user_id", userID, "error", err)
		return 0, apperrors.Persistence("Failed to count unread messages", err)
	}
	return count, nil
}
