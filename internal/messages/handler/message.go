package handler

import (
	"encoding/json"
	"net/http"

	"seva/internal/messages/service"
	apperrors "seva/pkg/errors"
	httputil "seva/pkg/http"
	"seva/pkg/logger"
	"seva/pkg/middleware"
	"seva/pkg/model"
	"seva/pkg/protocol"

	"github.com/julienschmidt/httprouter"
)

type UnreadResponse struct {
	Count int64 `json:"count"`
}

type MessageHandler struct {
	relay service.MessageRelay
	log   *logger.Logger
}

func NewMessageHandler(relay service.MessageRelay, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		relay: relay,
		log:   log,
	}
}

func (h *MessageHandler) principal(w http.ResponseWriter, r *http.Request, handler string) (model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return p, ok
}

// Send is the REST fallback for send-message. There is no live origin, so
// the acknowledgement is the response body.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Send")
	if !ok {
		return
	}

	var input model.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
			Code:  apperrors.CodeBadRequest,
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Send", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	msg, err := h.relay.Send(r.Context(), service.SendRequest{
		SenderID:    principal.UserID,
		SenderName:  principal.Name,
		RecipientID: input.RecipientID,
		Content:     input.Content,
	})
	if err != nil {
		h.writeError(w, "Send", err)
		return
	}

	if err := httputil.WriteCreated(w, service.SentPayload(msg)); err != nil {
		h.log.Error("failed to write created response", "handler", "Send", "operation", "WriteCreated", "error", err)
	}
}

func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Conversations")
	if !ok {
		return
	}

	conversations, err := h.relay.Conversations(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, "Conversations", err)
		return
	}

	if err := httputil.WriteSuccess(w, conversations); err != nil {
		h.log.Error("failed to write success response", "handler", "Conversations", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := h.principal(w, r, "Unread")
	if !ok {
		return
	}

	count, err := h.relay.UnreadCount(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, "Unread", err)
		return
	}

	if err := httputil.WriteSuccess(w, UnreadResponse{Count: count}); err != nil {
		h.log.Error("failed to write success response", "handler", "Unread", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "History")
	if !ok {
		return
	}

	limit, err := httputil.QueryInt(r, "limit", service.DefaultHistoryLimit)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	history, err := h.relay.History(r.Context(), principal.UserID, ps.ByName("userId"), limit)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	if err := httputil.WriteSuccess(w, history); err != nil {
		h.log.Error("failed to write success response", "handler", "History", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.principal(w, r, "MarkRead")
	if !ok {
		return
	}

	other := ps.ByName("userId")
	updated, err := h.relay.MarkRead(r.Context(), principal.UserID, other)
	if err != nil {
		h.writeError(w, "MarkRead", err)
		return
	}

	if err := httputil.WriteSuccess(w, protocol.MessagesReadPayload{OtherUserID: other, Updated: updated}); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkRead", "operation", "WriteSuccess", "error", err)
	}
}

func (h *MessageHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *MessageHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/messages", h.Send)
	router.GET("/api/v1/messages", h.Conversations)
	router.GET("/api/v1/messages/unread", h.Unread)
	router.GET("/api/v1/messages/with/:userId", h.History)
	router.POST("/api/v1/messages/with/:userId/read", h.MarkRead)
}
