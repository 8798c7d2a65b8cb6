package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	listingservice "seva/internal/listings/service"
	messageservice "seva/internal/messages/service"
	"seva/internal/realtime/presence"
	"seva/internal/realtime/registry"
	usersrepo "seva/internal/users/repository"
	apperrors "seva/pkg/errors"
	"seva/pkg/logger"
	"seva/pkg/model"
	"seva/pkg/protocol"
)

// Session is one authenticated live connection.
type Session struct {
	Handle    registry.Handle
	Principal model.Principal
}

type RateLimiter interface {
	Allow(userID string) bool
}

type handlerFunc func(ctx context.Context, s *Session, reply *replyEmitter, data json.RawMessage) error

// Dispatcher routes inbound frames to typed handlers. It runs on the read
// goroutine of each connection, so frames from one connection are handled
// in the order they arrived.
type Dispatcher struct {
	listings listingservice.ListingService
	relay    messageservice.MessageRelay
	hub      *presence.Hub
	users    usersrepo.UserRepository
	limiter  RateLimiter
	timeout  time.Duration
	log      *logger.Logger
	routes   map[string]handlerFunc
}

func NewDispatcher(
	listings listingservice.ListingService,
	relay messageservice.MessageRelay,
	hub *presence.Hub,
	users usersrepo.UserRepository,
	limiter RateLimiter,
	timeout time.Duration,
	log *logger.Logger,
) *Dispatcher {
	d := &Dispatcher{
		listings: listings,
		relay:    relay,
		hub:      hub,
		users:    users,
		limiter:  limiter,
		timeout:  timeout,
		log:      log,
	}
	d.routes = map[string]handlerFunc{
		protocol.EventNewListing:      d.newListing,
		protocol.EventReserveListing:  d.reserveListing,
		protocol.EventCompleteListing: d.completeListing,
		protocol.EventSendMessage:     d.sendMessage,
		protocol.EventMarkRead:        d.markRead,
		protocol.EventUpdateLocation:  d.updateLocation,
	}
	return d
}

// Dispatch handles one frame. Every failure becomes an error event on the
// originating connection only.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, frame []byte) {
	env, err := protocol.Decode(frame)
	reply := &replyEmitter{handle: s.Handle, requestID: env.RequestID}
	if err != nil {
		d.log.Debug("Malformed frame", "user_id", s.Principal.UserID, "error", err)
		reply.fail(d.log, "", apperrors.InvalidInput("Malformed frame"))
		return
	}

	handler, ok := d.routes[env.Event]
	if !ok {
		reply.fail(d.log, env.Event, apperrors.InvalidInput("Unknown event: "+env.Event))
		return
	}

	if d.limiter != nil && !d.limiter.Allow(s.Principal.UserID) {
		d.log.Warn("Rate limit exceeded", "user_id", s.Principal.UserID, "event", env.Event)
		reply.fail(d.log, env.Event, apperrors.TooManyRequests("Rate limit exceeded"))
		return
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := handler(ctx, s, reply, env.Data); err != nil {
		reply.fail(d.log, env.Event, err)
	}
}

func decode(event string, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperrors.InvalidInput("Missing payload for " + event)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.InvalidInput("Invalid payload for " + event)
	}
	return nil
}

func (d *Dispatcher) newListing(ctx context.Context, s *Session, reply *replyEmitter, data json.RawMessage) error {
	var input model.ListingInput
	if err := decode(protocol.EventNewListing, data, &input); err != nil {
		return err
	}
	listing, err := d.listings.CreateAndBroadcast(ctx, s.Principal.UserID, &input)
	if err != nil {
		return err
	}
	return reply.Emit(protocol.EventListingCreated, listing)
}

func (d *Dispatcher) reserveListing(ctx context.Context, s *Session, reply *replyEmitter, data json.RawMessage) error {
	var ref protocol.ListingRef
	if err := decode(protocol.EventReserveListing, data, &ref); err != nil {
		return err
	}
	listing, err := d.listings.Reserve(ctx, ref.ListingID, s.Principal)
	if err != nil {
		return err
	}
	return reply.Emit(protocol.EventReservationConfirmed, protocol.StatusOf(listing))
}

func (d *Dispatcher) completeListing(ctx context.Context, s *Session, reply *replyEmitter, data json.RawMessage) error {
	var ref protocol.ListingRef
	if err := decode(protocol.EventCompleteListing, data, &ref); err != nil {
		return err
	}
	listing, err := d.listings.Complete(ctx, ref.ListingID, s.Principal.UserID)
	if err != nil {
		return err
	}
	return reply.Emit(protocol.EventListingCompleted, protocol.StatusOf(listing))
}

// sendMessage acknowledges through the relay, which emits message-sent on
// the origin only after the message is stored.
func (d *Dispatcher) sendMessage(ctx context.Context, s *Session, reply *replyEmitter, data json.RawMessage) error {
	var input model.SendMessageInput
	if err := decode(protocol.EventSendMessage, data, &input); err != nil {
		return err
	}
	_, err := d.relay.Send(ctx, messageservice.SendRequest{
		SenderID:    s.Principal.UserID,
		SenderName:  s.Principal.Name,
		RecipientID: input.RecipientID,
		Content:     input.Content,
		Origin:      reply,
	})
	return err
}

func (d *Dispatcher) markRead(ctx context.Context, s *Session, reply *replyEmitter, data json.RawMessage) error {
	var req protocol.MarkReadRequest
	if err := decode(protocol.EventMarkRead, data, &req); err != nil {
		return err
	}
	updated, err := d.relay.MarkRead(ctx, s.Principal.UserID, req.OtherUserID)
	if err != nil {
		return err
	}
	return reply.Emit(protocol.EventMessagesRead, protocol.MessagesReadPayload{OtherUserID: req.OtherUserID, Updated: updated})
}

func (d *Dispatcher) updateLocation(ctx context.Context, s *Session, reply *replyEmitter, data json.RawMessage) error {
	var coords model.Coordinates
	if err := decode(protocol.EventUpdateLocation, data, &coords); err != nil {
		return err
	}
	cell, ok := d.hub.Move(s.Handle, coords)
	if !ok {
		return apperrors.InvalidInput("lat must be within [-90, 90] and lng within [-180, 180]")
	}
	storeLocation(ctx, d.users, d.log, s.Principal.UserID, coords)
	return reply.Emit(protocol.EventLocationUpdated, protocol.LocationUpdatedPayload{Cell: cell})
}

// storeLocation feeds the precise radius query. It is best-effort.
func storeLocation(ctx context.Context, users usersrepo.UserRepository, log *logger.Logger, userID string, coords model.Coordinates) {
	if users == nil {
		return
	}
	if err := users.UpdateLocation(ctx, userID, model.NewGeoPoint(coords.Lat, coords.Lng)); err != nil {
		log.Warn("Failed to store user location", "user_id", userID, "error", err)
	}
}

// replyEmitter writes direct replies to one connection, echoing the
// request id of the frame being handled.
type replyEmitter struct {
	handle    registry.Handle
	requestID string
}

func (r *replyEmitter) Emit(event string, payload any) error {
	frame, err := protocol.EncodeReply(event, r.requestID, payload)
	if err != nil {
		return err
	}
	return r.handle.Send(frame)
}

func (r *replyEmitter) fail(log *logger.Logger, event string, err error) {
	payload := protocol.ErrorPayload{Event: event}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		payload.Code = appErr.Code
		payload.Message = appErr.Message
		payload.Details = appErr.Details
		if appErr.Err != nil {
			log.Error("Live request failed", "event", event, "user_id", r.handle.UserID(), "error", err)
		}
	} else {
		log.Error("Live request failed", "event", event, "user_id", r.handle.UserID(), "error", err)
		payload.Code = apperrors.CodeInternal
		payload.Message = "Internal server error"
	}

	if sendErr := r.Emit(protocol.EventError, payload); sendErr != nil {
		log.Debug("Failed to deliver error event", "event", event, "error", sendErr)
	}
}
