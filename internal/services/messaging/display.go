package messaging

import (
	"regexp"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

const (
	unknownUserName   = "Unknown User"
	anonymousUserName = "Anonymous User"
)

var anonymousPrefix = regexp.MustCompile(`(?i)^Anonymous:\s*`)

// SenderView is how a message's sender is shown to one viewer.
type SenderView struct {
	ID      string
	Name    string
	Hidden  bool
	Content string
}

// DisplaySender hides the sender of an anonymous message from everyone but
// the sender. Only messages stamped with the anonymous sender name are
// hidden, and their "Anonymous:" content prefix is dropped.
func DisplaySender(msg model.Message, viewerID string) SenderView {
	if msg.IsAnonymous && viewerID != msg.SenderID && msg.SenderName == model.AnonymousName {
		return SenderView{
			Name:    model.AnonymousName,
			Hidden:  true,
			Content: anonymousPrefix.ReplaceAllString(msg.Content, ""),
		}
	}
	return SenderView{
		ID:      msg.SenderID,
		Name:    msg.SenderName,
		Content: msg.Content,
	}
}

// CounterpartName is the conversation header label. counterpart is nil when
// the other user's document could not be loaded.
func CounterpartName(conv model.Conversation, counterpart *model.User) string {
	if counterpart != nil {
		switch {
		case counterpart.Username != "":
			return counterpart.Username
		case counterpart.DisplayName != "":
			return counterpart.DisplayName
		}
		return unknownUserName
	}
	if conv.LastMessage != nil && conv.LastMessage.IsAnonymous {
		return anonymousUserName
	}
	return unknownUserName
}

// HiddenCounterpart reports whether viewerID only knows the counterpart
// through anonymous messages: every message came from them with a hidden
// sender.
func HiddenCounterpart(conv model.Conversation, viewerID string) bool {
	if len(conv.Messages) == 0 {
		return false
	}
	for _, msg := range conv.Messages {
		if !DisplaySender(msg, viewerID).Hidden {
			return false
		}
	}
	return true
}

// ConversationKey is the route key of conv for viewerID. A hidden
// counterpart is addressed by the id of the earliest message instead of
// the user id.
func ConversationKey(conv model.Conversation, viewerID string) string {
	if !HiddenCounterpart(conv, viewerID) {
		return conv.CounterpartID
	}
	if thread := Thread(conv); thread[0].ID != "" {
		return thread[0].ID
	}
	return conv.CounterpartID
}
