package database

import "time"

const (
	RoomKindPrivate = "private"
	RoomKindGroup   = "group"
)

type Account struct {
	Id           string
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room is a chatroom row. For private rooms the two participant
// references are embedded as snapshots; group rooms keep their roster in
// the participants table and leave the participant columns empty.
type Room struct {
	Id               int
	ExternalId       string
	Kind             string
	Name             string
	Participant1Id   string
	Participant1Name string
	Participant2Id   string
	Participant2Name string
	LastMessage      string
	LastModified     time.Time
	CreatedAt        time.Time
}

// Participant is one group-room roster entry. The username is a
// snapshot taken when the user joined.
type Participant struct {
	Id        int
	RoomId    int
	UserId    string
	Username  string
	CreatedAt time.Time
}

type Message struct {
	Id         int64
	RoomId     int
	SenderId   string
	SenderName string
	Content    string
	CreatedAt  time.Time
}

type Friendship struct {
	Id        int
	UserId    string
	FriendId  string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Id           string
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	ExternalId string
	Name       string
}

type CreatePrivateRoomParams struct {
	ExternalId       string
	Participant1Id   string
	Participant1Name string
	Participant2Id   string
	Participant2Name string
}

type CreateMessageParams struct {
	RoomId     int
	SenderId   string
	SenderName string
	Content    string
}
