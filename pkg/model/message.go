package model

import "time"

type Message struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	SenderID    string    `json:"sender_id" bson:"sender_id"`
	RecipientID string    `json:"recipient_id" bson:"recipient_id"`
	Content     string    `json:"content" bson:"content"`
	Read        bool      `json:"read" bson:"read"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

type SendMessageInput struct {
	RecipientID string `json:"recipient_id" validate:"required,max=64"`
	Content     string `json:"content" validate:"required,max=2000"`
}

// Conversation summarizes the thread between the caller and one counterpart.
type Conversation struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	LastMessage string    `json:"last_message"`
	UnreadCount int       `json:"unread_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// ConversationHistory is one thread as seen by the caller.
type ConversationHistory struct {
	User     *User      `json:"user"`
	Messages []*Message `json:"messages"`
}
