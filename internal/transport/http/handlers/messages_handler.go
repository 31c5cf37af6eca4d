package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/services/messaging"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
	httperrors "github.com/thecompanyunltd/nightvibe/internal/transport/http/errors"
)

// UserLookup resolves counterpart documents for conversation labels.
type UserLookup interface {
	Me(ctx context.Context, userID string) (model.User, error)
}

type MessagesHandler struct {
	service *messaging.Service
	users   UserLookup
	log     *zap.Logger
}

func NewMessagesHandler(service *messaging.Service, users UserLookup, log *zap.Logger) *MessagesHandler {
	return &MessagesHandler{service: service, users: users, log: log}
}

func (h *MessagesHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MESSAGING_SERVICE_UNAVAILABLE", "messaging service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	convs, err := h.service.Conversations(r.Context(), id.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	items := make([]dto.ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		items = append(items, dto.Conversation(conv, id.UserID, h.counterpartName(r.Context(), conv, id.UserID), false))
	}
	writeOK(w, dto.ConversationsResponse{
		Items:       items,
		TotalUnread: messaging.TotalUnread(convs),
	})
}

func (h *MessagesHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MESSAGING_SERVICE_UNAVAILABLE", "messaging service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Conversation(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Conversation(conv, id.UserID, h.counterpartName(r.Context(), conv, id.UserID), true))
}

func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MESSAGING_SERVICE_UNAVAILABLE", "messaging service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	marked, err := h.service.MarkConversationRead(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.MarkReadResponse{Marked: marked})
}

func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MESSAGING_SERVICE_UNAVAILABLE", "messaging service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	msg, err := h.service.Send(r.Context(), messaging.SendInput{
		SenderID:   id.UserID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Anonymous:  req.Anonymous,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, dto.Message(msg, id.UserID))
}

// counterpartName skips the user lookup for a hidden counterpart so the
// header never carries their real name.
func (h *MessagesHandler) counterpartName(ctx context.Context, conv model.Conversation, viewerID string) string {
	if h.users == nil || messaging.HiddenCounterpart(conv, viewerID) {
		return messaging.CounterpartName(conv, nil)
	}
	u, err := h.users.Me(ctx, conv.CounterpartID)
	if err != nil {
		return messaging.CounterpartName(conv, nil)
	}
	return messaging.CounterpartName(conv, &u)
}

func (h *MessagesHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if rl, ok := messaging.IsRateLimited(err); ok {
		httperrors.WriteRateLimited(w, "RATE_LIMITED", "You are sending messages too fast.", rl.RetryAfter())
		return
	}
	switch {
	case errors.Is(err, messaging.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", validationMessage(err, messaging.ErrValidation))
	case errors.Is(err, messaging.ErrReceiverNotFound):
		writeNotFound(w, "RECEIVER_NOT_FOUND", "receiver not found")
	case errors.Is(err, messaging.ErrConversationEmpty):
		writeNotFound(w, "CONVERSATION_NOT_FOUND", "conversation not found")
	case errors.Is(err, messaging.ErrMessagesDisabled):
		writeForbidden(w, "MESSAGES_DISABLED", "This user does not accept messages.")
	default:
		writeUnexpected(w, r, h.log, err)
	}
}
