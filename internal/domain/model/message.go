package model

import "time"

const (
	AnonymousName = "Anonymous"
	NoContent     = "No content"
)

// RawMessage is a message document as fetched, before normalization.
// Both the canonical and the misspelled legacy keys are carried.
type RawMessage struct {
	ID           string
	SenderID     string
	SenderrID    string
	ReceiverID   string
	ReceiverrID  string
	SenderName   string
	SenderrName  string
	Content      *string
	Message      *string
	Participants []string
	IsAnonymous  bool
	Timestamp    *time.Time
	Read         bool
	ReadBy       []string
	Reported     bool
}

type Message struct {
	ID           string     `json:"id"`
	SenderID     string     `json:"senderId"`
	ReceiverID   string     `json:"receiverId"`
	Participants []string   `json:"participants"`
	SenderName   string     `json:"senderName,omitempty"`
	Content      string     `json:"content"`
	IsAnonymous  bool       `json:"isAnonymous"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Read         bool       `json:"read"`
	ReadBy       []string   `json:"readBy"`
	Reported     bool       `json:"reported,omitempty"`
}

// At returns the timestamp, or the zero Unix time when it is missing.
func (m Message) At() time.Time {
	if m.Timestamp == nil {
		return time.Unix(0, 0).UTC()
	}
	return *m.Timestamp
}

// ReadByUser reports whether userID is recorded as a reader, through either
// the readBy set or the read flag.
func (m Message) ReadByUser(userID string) bool {
	if m.Read {
		return true
	}
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

type Conversation struct {
	CounterpartID string    `json:"counterpartId"`
	Messages      []Message `json:"messages"`
	LastMessage   *Message  `json:"lastMessage,omitempty"`
	UnreadCount   int       `json:"unreadCount"`
}

// LastTimestamp is the last message time, nil when there is none.
func (c Conversation) LastTimestamp() *time.Time {
	if c.LastMessage == nil {
		return nil
	}
	return c.LastMessage.Timestamp
}

// Earlier orders optional timestamps. A missing timestamp is older than any
// present one, including the epoch and times before it.
func Earlier(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}

// MessageListQuery selects messages for moderation views, newest first.
type MessageListQuery struct {
	Search        string
	Since         *time.Time
	AnonymousOnly bool
	ReportedOnly  bool
	Limit         int
}

// MessageCountQuery filters counts. Zero fields mean no constraint.
type MessageCountQuery struct {
	Since      *time.Time
	SenderID   string
	ReceiverID string
}
