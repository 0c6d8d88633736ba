package model

import "time"

// InstantLayout is the canonical wire format for timestamps: a UTC instant
// with millisecond precision and a literal Z suffix. Both stores keep
// timestamps as strings in this format so ordering is lexicographic.
const InstantLayout = "2006-01-02T15:04:05.000Z"

// Task is the sole entity of the system.
//
// ID is either a client-generated temporary identity (prefixed "local-")
// or a server-assigned uuid. Synced is local-only bookkeeping: true means
// the local copy is confirmed to match the remote copy. It never crosses
// the wire.
type Task struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"ownerId"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	IsDone      bool    `json:"isDone"`
	DueDate     *string `json:"dueDate,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	Synced      bool    `json:"-"`
}

// PushToken is a device registration token owned by a user.
type PushToken struct {
	Token     string `json:"token"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
}

// FormatInstant normalizes t to the canonical UTC instant string.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// ParseInstant parses a canonical instant string back into a UTC time.
// RFC 3339 strings are accepted as a fallback for externally produced values.
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(InstantLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
