package database

import (
	"errors"
	"time"
)

// ErrDuplicateRoom is returned by CreatePrivateRoom when a private room
// for the same unordered participant pair already exists. Callers are
// expected to retry their lookup and reuse the existing room.
var ErrDuplicateRoom = errors.New("private room already exists for participant pair")

type MessengerRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId string) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	CreateFriendship(userId, friendId string) (Friendship, error)
	FriendshipExists(userId, friendId string) bool
	ListFriends(userId string) ([]Account, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	CreatePrivateRoom(params CreatePrivateRoomParams) (Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	GetPrivateRoom(userAId, userBId string) (Room, error)
	ListRoomsForUser(userId string) ([]Room, error)
	UpdateRoomOnMessage(roomId int, preview string, at time.Time) error
	AddParticipant(roomId int, userId, username string) (Participant, error)
	ParticipantExists(roomId int, userId string) bool
	ListParticipants(roomId int) ([]Participant, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	ListMessages(roomId int, after, before int64, limit int) ([]Message, error)
}
