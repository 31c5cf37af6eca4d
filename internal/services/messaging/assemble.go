package messaging

import (
	"sort"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

// Assemble groups the current user's messages into conversations keyed by
// counterpart, newest conversation first. Duplicate ids are kept once and
// messages that do not involve the user are dropped.
func Assemble(messages []model.Message, currentUserID string) []model.Conversation {
	seen := make(map[string]struct{}, len(messages))
	byCounterpart := make(map[string]*model.Conversation)
	order := make([]string, 0)

	for _, msg := range messages {
		if msg.ID != "" {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
		}

		counterpart, ok := Counterpart(msg, currentUserID)
		if !ok {
			continue
		}

		conv, exists := byCounterpart[counterpart]
		if !exists {
			conv = &model.Conversation{CounterpartID: counterpart}
			byCounterpart[counterpart] = conv
			order = append(order, counterpart)
		}
		conv.Messages = append(conv.Messages, msg)
	}

	out := make([]model.Conversation, 0, len(order))
	for _, id := range order {
		conv := byCounterpart[id]
		summarize(conv, currentUserID)
		out = append(out, *conv)
	}
	sortConversations(out)
	return out
}

// Counterpart returns the other participant of msg from userID's side.
func Counterpart(msg model.Message, userID string) (string, bool) {
	var other string
	switch userID {
	case msg.SenderID:
		other = msg.ReceiverID
	case msg.ReceiverID:
		other = msg.SenderID
	default:
		return "", false
	}
	if other == "" {
		return "", false
	}
	return other, true
}

// Unread reports whether msg is addressed to userID and not yet read by
// them.
func Unread(msg model.Message, userID string) bool {
	return msg.ReceiverID == userID && !msg.ReadByUser(userID)
}

// Thread returns the conversation's messages oldest first. Messages without
// a timestamp come before all others.
func Thread(conv model.Conversation) []model.Message {
	out := append([]model.Message{}, conv.Messages...)
	sort.SliceStable(out, func(i, j int) bool {
		return model.Earlier(out[i].Timestamp, out[j].Timestamp)
	})
	return out
}

// Merge applies one realtime message to an assembled list and returns the
// updated list. A message with a known id replaces the stored copy. The
// input slice is not modified.
func Merge(convs []model.Conversation, msg model.Message, currentUserID string) []model.Conversation {
	counterpart, ok := Counterpart(msg, currentUserID)
	if !ok {
		return convs
	}

	out := make([]model.Conversation, len(convs))
	copy(out, convs)

	idx := -1
	for i := range out {
		if out[i].CounterpartID == counterpart {
			idx = i
			break
		}
	}
	if idx < 0 {
		out = append(out, model.Conversation{CounterpartID: counterpart})
		idx = len(out) - 1
	}

	conv := &out[idx]
	messages := append([]model.Message{}, conv.Messages...)
	replaced := false
	for i := range messages {
		if msg.ID != "" && messages[i].ID == msg.ID {
			messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		messages = append(messages, msg)
	}
	conv.Messages = messages
	summarize(conv, currentUserID)

	sortConversations(out)
	return out
}

func TotalUnread(convs []model.Conversation) int {
	total := 0
	for _, c := range convs {
		total += c.UnreadCount
	}
	return total
}

// summarize recomputes the last message and the unread count. On equal
// timestamps the first message seen stays last.
func summarize(conv *model.Conversation, currentUserID string) {
	conv.LastMessage = nil
	conv.UnreadCount = 0
	for i := range conv.Messages {
		msg := conv.Messages[i]
		if conv.LastMessage == nil || model.Earlier(conv.LastMessage.Timestamp, msg.Timestamp) {
			last := msg
			conv.LastMessage = &last
		}
		if Unread(msg, currentUserID) {
			conv.UnreadCount++
		}
	}
}

func sortConversations(convs []model.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return model.Earlier(convs[j].LastTimestamp(), convs[i].LastTimestamp())
	})
}
