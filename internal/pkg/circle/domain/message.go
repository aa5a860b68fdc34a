package circle

import (
	"errors"
	"strings"
	"time"
)

// Domain-level errors for message construction.
var (
	ErrBadAddressing = errors.New("circle: exactly one of receiver_id/group_id must be set")
	ErrEmptyMessage  = errors.New("circle: empty message (no body or attachment)")
	ErrNoSender      = errors.New("circle: sender_id is required")
)

// Message is an immutable entry in a thread. Exactly one of ReceiverID
// and GroupID is set; at least one of Body, ImageURL, AudioURL is non-empty.
type Message struct {
	ID         string    `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	ReceiverID *string   `db:"receiver_id" json:"receiver_id,omitempty"`
	GroupID    *string   `db:"group_id" json:"group_id,omitempty"`
	Body       *string   `db:"body" json:"body,omitempty"`
	ImageURL   *string   `db:"image_url" json:"image_url,omitempty"`
	AudioURL   *string   `db:"audio_url" json:"audio_url,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	// SenderName is joined presentation data, never persisted on the row.
	SenderName string `db:"sender_name" json:"sender_name,omitempty"`
}

// NewMessage validates and normalizes m: the body is trimmed (an
// all-whitespace body counts as absent), a zero CreatedAt is set to now,
// and the addressing invariant is enforced.
func NewMessage(m Message) (*Message, error) {
	if m.SenderID == "" {
		return nil, ErrNoSender
	}
	if (m.ReceiverID == nil) == (m.GroupID == nil) {
		return nil, ErrBadAddressing
	}

	if m.Body != nil {
		trimmed := strings.TrimSpace(*m.Body)
		if trimmed == "" {
			m.Body = nil
		} else {
			m.Body = &trimmed
		}
	}
	if m.Body == nil && m.ImageURL == nil && m.AudioURL == nil {
		return nil, ErrEmptyMessage
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return &m, nil
}

// InThread is the addressing predicate: whether m belongs to thread t as
// seen by account self. Group: the group ids match. Direct: the message
// flows between self and the peer, in either direction.
func (m Message) InThread(self string, t Thread) bool {
	switch t.Kind {
	case ThreadGroup:
		return m.GroupID != nil && *m.GroupID == t.ID
	case ThreadDirect:
		if m.GroupID != nil || m.ReceiverID == nil {
			return false
		}
		return (m.SenderID == self && *m.ReceiverID == t.ID) ||
			(m.SenderID == t.ID && *m.ReceiverID == self)
	}
	return false
}

// Before defines the total order messages render in: (CreatedAt, ID)
// ascending. The id tiebreak keeps two messages created in the same
// instant in the same order on every client.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
