// Package protocol defines the JSON frames exchanged over the live channel.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"seva/pkg/model"
)

// Inbound events.
const (
	EventNewListing      = "new-listing"
	EventReserveListing  = "reserve-listing"
	EventCompleteListing = "complete-listing"
	EventSendMessage     = "send-message"
	EventMarkRead        = "mark-read"
	EventUpdateLocation  = "update-location"
)

// Outbound events.
const (
	EventConnected            = "connected"
	EventListingCreated       = "listing-created"
	EventListingAdded         = "listing-added"
	EventReservationConfirmed = "reservation-confirmed"
	EventListingCompleted     = "listing-completed"
	EventNotification         = "notification"
	EventNewMessage           = "new-message"
	EventMessageSent          = "message-sent"
	EventMessagesRead         = "messages-read"
	EventLocationUpdated      = "location-updated"
	EventError                = "error"
)

// Envelope is one frame in either direction. RequestID is echoed back on the
// direct reply so clients can correlate acknowledgements.
type Envelope struct {
	Event     string          `json:"event"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame ready to hand to a connection.
func Encode(event string, payload any) ([]byte, error) {
	return EncodeReply(event, "", payload)
}

func EncodeReply(event, requestID string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		data = raw
	}
	return json.Marshal(Envelope{Event: event, RequestID: requestID, Data: data})
}

// Decode parses an inbound frame. The payload stays raw until a handler
// knows its type.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("malformed frame: missing event")
	}
	return env, nil
}

// Emitter delivers a direct reply to the connection that issued a request.
type Emitter interface {
	Emit(event string, payload any) error
}

type ConnectedPayload struct {
	UserID string `json:"user_id"`
	Cell   string `json:"cell,omitempty"`
}

type ListingAddedPayload struct {
	Listing *model.Listing     `json:"listing"`
	Owner   model.OwnerSummary `json:"owner"`
}

// ListingStatusPayload acknowledges a reservation or completion to the
// caller that made it.
type ListingStatusPayload struct {
	ListingID string         `json:"listing_id"`
	Title     string         `json:"title"`
	Listing   *model.Listing `json:"listing"`
}

func StatusOf(l *model.Listing) ListingStatusPayload {
	return ListingStatusPayload{ListingID: l.ID, Title: l.Title, Listing: l}
}

type ListingRef struct {
	ListingID string `json:"listing_id"`
}

type MessageSentPayload struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

type NewMessagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type MarkReadRequest struct {
	OtherUserID string `json:"other_user_id"`
}

type MessagesReadPayload struct {
	OtherUserID string `json:"other_user_id"`
	Updated     int64  `json:"updated"`
}

type LocationUpdatedPayload struct {
	Cell string `json:"cell"`
}

type ErrorPayload struct {
	Event   string         `json:"event,omitempty"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
