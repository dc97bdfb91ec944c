package types

import (
	"time"
)

// User is a point-in-time reference to an account: id plus display name.
// Rooms and messages embed it by value, so renaming an account never
// rewrites history.
type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type RoomKind string

const (
	RoomPrivate RoomKind = "private"
	RoomGroup   RoomKind = "group"
)

type Room struct {
	ExternalId   string    `json:"external_id"`
	Kind         RoomKind  `json:"kind"`
	Name         string    `json:"name"`
	Participants []User    `json:"participants,omitempty"`
	LastMessage  string    `json:"last_message,omitempty"`
	LastModified time.Time `json:"last_modified"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type Message struct {
	Id        int64     `json:"id"`
	RoomId    string    `json:"room_id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Notification is the payload pushed to each online, non-sender member
// of a room when a message arrives.
type Notification struct {
	RoomId     string `json:"room_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}
