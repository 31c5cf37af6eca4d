package dto

import (
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/services/messaging"
)

// MessageResponse is a message as one viewer sees it. Anonymous senders
// are hidden from everyone but themselves.
type MessageResponse struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"sender_id,omitempty"`
	SenderName  string     `json:"sender_name"`
	ReceiverID  string     `json:"receiver_id"`
	Content     string     `json:"content"`
	IsAnonymous bool       `json:"is_anonymous"`
	Mine        bool       `json:"mine"`
	Read        bool       `json:"read"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// ConversationResponse omits the counterpart id when the viewer only knows
// them anonymously. Key addresses the conversation either way.
type ConversationResponse struct {
	Key             string            `json:"key"`
	CounterpartID   string            `json:"counterpart_id,omitempty"`
	CounterpartName string            `json:"counterpart_name"`
	LastMessage     *MessageResponse  `json:"last_message,omitempty"`
	UnreadCount     int               `json:"unread_count"`
	Messages        []MessageResponse `json:"messages,omitempty"`
}

type ConversationsResponse struct {
	Items       []ConversationResponse `json:"items"`
	TotalUnread int                    `json:"total_unread"`
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
	Anonymous  bool   `json:"anonymous"`
}

type MarkReadResponse struct {
	Marked int `json:"marked"`
}

type FileReportRequest struct {
	ReportedUserID string               `json:"reported_user_id" validate:"required"`
	MessageID      string               `json:"message_id"`
	Reasons        []enums.ReportReason `json:"reasons" validate:"required,min=1"`
	Details        string               `json:"details" validate:"max=1000"`
}

type ReportResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func Message(msg model.Message, viewerID string) MessageResponse {
	view := messaging.DisplaySender(msg, viewerID)
	return MessageResponse{
		ID:          msg.ID,
		SenderID:    view.ID,
		SenderName:  view.Name,
		ReceiverID:  msg.ReceiverID,
		Content:     view.Content,
		IsAnonymous: msg.IsAnonymous,
		Mine:        msg.SenderID == viewerID,
		Read:        msg.ReadByUser(msg.ReceiverID),
		Timestamp:   msg.Timestamp,
	}
}

// Conversation renders conv for viewerID. The thread is included only for
// the single-conversation view.
func Conversation(conv model.Conversation, viewerID, counterpartName string, withThread bool) ConversationResponse {
	resp := ConversationResponse{
		Key:             messaging.ConversationKey(conv, viewerID),
		CounterpartID:   conv.CounterpartID,
		CounterpartName: counterpartName,
		UnreadCount:     conv.UnreadCount,
	}
	if messaging.HiddenCounterpart(conv, viewerID) {
		resp.CounterpartID = ""
	}
	if conv.LastMessage != nil {
		last := Message(*conv.LastMessage, viewerID)
		resp.LastMessage = &last
	}
	if withThread {
		thread := messaging.Thread(conv)
		resp.Messages = make([]MessageResponse, 0, len(thread))
		for _, m := range thread {
			resp.Messages = append(resp.Messages, Message(m, viewerID))
		}
	}
	return resp
}
