package messaging

import (
	"strings"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

// Normalize converts a stored message document into the canonical shape.
// It is the only place the legacy senderrId/receiverrId/senderrName keys
// and the message body alias are read. The input is not modified.
func Normalize(raw model.RawMessage) model.Message {
	msg := model.Message{
		ID:          raw.ID,
		SenderID:    firstNonEmpty(raw.SenderID, raw.SenderrID),
		ReceiverID:  firstNonEmpty(raw.ReceiverID, raw.ReceiverrID),
		SenderName:  firstNonEmpty(raw.SenderName, raw.SenderrName),
		Content:     content(raw),
		IsAnonymous: raw.IsAnonymous,
		Read:        raw.Read,
		Reported:    raw.Reported,
	}
	if raw.Timestamp != nil {
		ts := *raw.Timestamp
		msg.Timestamp = &ts
	}

	msg.ReadBy = append([]string{}, raw.ReadBy...)
	if len(raw.Participants) > 0 {
		msg.Participants = append([]string{}, raw.Participants...)
	} else {
		msg.Participants = []string{msg.SenderID, msg.ReceiverID}
	}

	return msg
}

func NormalizeAll(raws []model.RawMessage) []model.Message {
	out := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw))
	}
	return out
}

func content(raw model.RawMessage) string {
	if raw.Content != nil && *raw.Content != "" {
		return *raw.Content
	}
	if raw.Message != nil && *raw.Message != "" {
		return *raw.Message
	}
	return model.NoContent
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
