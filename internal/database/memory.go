package database

import (
	"database/sql"
	"sort"
	"sync"
	"time"
)

// MemMessengerRepository is an in-memory MessengerRepository. It provides
// the same atomicity guarantees as the Postgres implementation, notably
// the create-if-absent semantics for private rooms, and is used by tests
// that exercise concurrent access.
type MemMessengerRepository struct {
	mu           sync.Mutex
	accounts     map[string]Account
	friendships  []Friendship
	rooms        map[int]Room
	roomsByExtId map[string]int
	privatePairs map[string]int
	participants map[int][]Participant
	messages     map[int][]Message
	nextRoomId   int
	nextMsgId    int64
	nextRowId    int
}

func NewMemMessengerRepository() *MemMessengerRepository {
	return &MemMessengerRepository{
		accounts:     make(map[string]Account),
		rooms:        make(map[int]Room),
		roomsByExtId: make(map[string]int),
		privatePairs: make(map[string]int),
		participants: make(map[int][]Participant),
		messages:     make(map[int][]Message),
	}
}

// pairKey normalizes an unordered participant pair so either ordering
// maps to the same key.
func pairKey(a, b string) string {
	if a < b {
		return a + "\x00" + b
	}
	return b + "\x00" + a
}

func (db *MemMessengerRepository) Ping() error { return nil }

func (db *MemMessengerRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().UTC()
	a := Account{
		Id:           params.Id,
		Username:     params.Username,
		EmailAddress: params.EmailAddress,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	db.accounts[a.Id] = a

	return a, nil
}

func (db *MemMessengerRepository) GetAccountById(accountId string) (Account, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.accounts[accountId]
	if !ok {
		return Account{}, sql.ErrNoRows
	}
	return a, nil
}

func (db *MemMessengerRepository) GetAccountByEmail(email string) (Account, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, a := range db.accounts {
		if a.EmailAddress == email {
			return a, nil
		}
	}
	return Account{}, sql.ErrNoRows
}

func (db *MemMessengerRepository) CreateFriendship(userId, friendId string) (Friendship, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextRowId++
	f := Friendship{
		Id:        db.nextRowId,
		UserId:    userId,
		FriendId:  friendId,
		CreatedAt: time.Now().UTC(),
	}
	db.friendships = append(db.friendships, f)

	return f, nil
}

func (db *MemMessengerRepository) FriendshipExists(userId, friendId string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, f := range db.friendships {
		if (f.UserId == userId && f.FriendId == friendId) ||
			(f.UserId == friendId && f.FriendId == userId) {
			return true
		}
	}
	return false
}

func (db *MemMessengerRepository) ListFriends(userId string) ([]Account, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var friends []Account
	for _, f := range db.friendships {
		switch userId {
		case f.UserId:
			friends = append(friends, db.accounts[f.FriendId])
		case f.FriendId:
			friends = append(friends, db.accounts[f.UserId])
		}
	}
	return friends, nil
}

func (db *MemMessengerRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextRoomId++
	now := time.Now().UTC()
	r := Room{
		Id:           db.nextRoomId,
		ExternalId:   params.ExternalId,
		Kind:         RoomKindGroup,
		Name:         params.Name,
		LastModified: now,
		CreatedAt:    now,
	}
	db.rooms[r.Id] = r
	db.roomsByExtId[r.ExternalId] = r.Id

	return r, nil
}

func (db *MemMessengerRepository) CreatePrivateRoom(params CreatePrivateRoomParams) (Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := pairKey(params.Participant1Id, params.Participant2Id)
	if _, ok := db.privatePairs[key]; ok {
		return Room{}, ErrDuplicateRoom
	}

	db.nextRoomId++
	now := time.Now().UTC()
	r := Room{
		Id:               db.nextRoomId,
		ExternalId:       params.ExternalId,
		Kind:             RoomKindPrivate,
		Participant1Id:   params.Participant1Id,
		Participant1Name: params.Participant1Name,
		Participant2Id:   params.Participant2Id,
		Participant2Name: params.Participant2Name,
		LastModified:     now,
		CreatedAt:        now,
	}
	db.rooms[r.Id] = r
	db.roomsByExtId[r.ExternalId] = r.Id
	db.privatePairs[key] = r.Id

	return r, nil
}

func (db *MemMessengerRepository) GetRoomByExternalId(externalId string) (Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.roomsByExtId[externalId]
	if !ok {
		return Room{}, sql.ErrNoRows
	}
	return db.rooms[id], nil
}

func (db *MemMessengerRepository) GetPrivateRoom(userAId, userBId string) (Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.privatePairs[pairKey(userAId, userBId)]
	if !ok {
		return Room{}, sql.ErrNoRows
	}
	return db.rooms[id], nil
}

func (db *MemMessengerRepository) ListRoomsForUser(userId string) ([]Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var rooms []Room
	for id, r := range db.rooms {
		switch r.Kind {
		case RoomKindPrivate:
			if r.Participant1Id == userId || r.Participant2Id == userId {
				rooms = append(rooms, r)
			}
		case RoomKindGroup:
			for _, p := range db.participants[id] {
				if p.UserId == userId {
					rooms = append(rooms, r)
					break
				}
			}
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastModified.After(rooms[j].LastModified)
	})

	return rooms, nil
}

func (db *MemMessengerRepository) UpdateRoomOnMessage(roomId int, preview string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.rooms[roomId]
	if !ok {
		return sql.ErrNoRows
	}
	r.LastMessage = preview
	r.LastModified = at
	db.rooms[roomId] = r

	return nil
}

func (db *MemMessengerRepository) AddParticipant(roomId int, userId, username string) (Participant, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, p := range db.participants[roomId] {
		if p.UserId == userId {
			return p, nil
		}
	}

	db.nextRowId++
	p := Participant{
		Id:        db.nextRowId,
		RoomId:    roomId,
		UserId:    userId,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	db.participants[roomId] = append(db.participants[roomId], p)

	return p, nil
}

func (db *MemMessengerRepository) ParticipantExists(roomId int, userId string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, p := range db.participants[roomId] {
		if p.UserId == userId {
			return true
		}
	}
	return false
}

func (db *MemMessengerRepository) ListParticipants(roomId int) ([]Participant, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return append([]Participant(nil), db.participants[roomId]...), nil
}

func (db *MemMessengerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.rooms[params.RoomId]; !ok {
		return Message{}, sql.ErrNoRows
	}

	db.nextMsgId++
	m := Message{
		Id:         db.nextMsgId,
		RoomId:     params.RoomId,
		SenderId:   params.SenderId,
		SenderName: params.SenderName,
		Content:    params.Content,
		CreatedAt:  time.Now().UTC(),
	}
	db.messages[params.RoomId] = append(db.messages[params.RoomId], m)

	return m, nil
}

func (db *MemMessengerRepository) ListMessages(roomId int, after, before int64, limit int) ([]Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var messages []Message
	for _, m := range db.messages[roomId] {
		if after != 0 && m.Id <= after {
			continue
		}
		if before != 0 && m.Id >= before {
			continue
		}
		messages = append(messages, m)
		if limit != 0 && len(messages) == limit {
			break
		}
	}

	return messages, nil
}
