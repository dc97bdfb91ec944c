package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockMessengerRepository struct {
	mock.Mock
}

func (m *MockMessengerRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockMessengerRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessengerRepository) GetAccountById(accountId string) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessengerRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockMessengerRepository) CreateFriendship(userId, friendId string) (Friendship, error) {
	args := m.Called(userId, friendId)
	return args.Get(0).(Friendship), args.Error(1)
}
func (m *MockMessengerRepository) FriendshipExists(userId, friendId string) bool {
	args := m.Called(userId, friendId)
	return args.Bool(0)
}
func (m *MockMessengerRepository) ListFriends(userId string) ([]Account, error) {
	args := m.Called(userId)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockMessengerRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockMessengerRepository) CreatePrivateRoom(params CreatePrivateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockMessengerRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockMessengerRepository) GetPrivateRoom(userAId, userBId string) (Room, error) {
	args := m.Called(userAId, userBId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockMessengerRepository) ListRoomsForUser(userId string) ([]Room, error) {
	args := m.Called(userId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockMessengerRepository) UpdateRoomOnMessage(roomId int, preview string, at time.Time) error {
	args := m.Called(roomId, preview, at)
	return args.Error(0)
}
func (m *MockMessengerRepository) AddParticipant(roomId int, userId, username string) (Participant, error) {
	args := m.Called(roomId, userId, username)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockMessengerRepository) ParticipantExists(roomId int, userId string) bool {
	args := m.Called(roomId, userId)
	return args.Bool(0)
}
func (m *MockMessengerRepository) ListParticipants(roomId int) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockMessengerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessengerRepository) ListMessages(roomId int, after, before int64, limit int) ([]Message, error) {
	args := m.Called(roomId, after, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
