package chat

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/samber/lo"
	"github.com/teris-io/shortid"
)

// Presence answers which of a set of users currently hold a live
// connection.
type Presence interface {
	FilterOnline(users []types.User) []types.User
}

// Notifier pushes a notification to one user's delivery channel.
// Delivery is fire-and-forget from the service's perspective; a failed
// delivery to one recipient never affects the others.
type Notifier interface {
	Deliver(userId string, n *types.Notification) error
}

// Service implements the messaging operations: chatroom lookup and
// creation, membership checks, ordered history, and the send pipeline
// with presence-aware notification fan-out.
type Service struct {
	log      *log.Logger
	db       database.MessengerRepository
	presence Presence
	notifier Notifier
	stats    stats.StatsProvider
	// newRoomId generates external room ids; overridable in tests
	newRoomId func() (string, error)
}

func NewService(logger *log.Logger, db database.MessengerRepository, presence Presence, notifier Notifier, su stats.StatsProvider) *Service {
	su.RegisterMetric(stats.MessagesSent)
	su.RegisterMetric(stats.NotificationsSent)
	su.RegisterMetric(stats.NotificationFailures)

	return &Service{
		log:       logger,
		db:        db,
		presence:  presence,
		notifier:  notifier,
		stats:     su,
		newRoomId: shortid.Generate,
	}
}

func userRef(a database.Account) types.User {
	return types.User{
		Id:           a.Id,
		Username:     a.Username,
		EmailAddress: a.EmailAddress,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// roomForViewer converts a room row to its API shape. A private room has
// no name of its own; the viewer sees the other participant's name.
func roomForViewer(room database.Room, viewerId string) types.Room {
	r := types.Room{
		ExternalId:   room.ExternalId,
		Kind:         types.RoomKind(room.Kind),
		Name:         room.Name,
		LastMessage:  room.LastMessage,
		LastModified: room.LastModified,
		CreatedAt:    room.CreatedAt,
	}

	if room.Kind == database.RoomKindPrivate {
		if room.Participant1Id != viewerId {
			r.Name = room.Participant1Name
		} else {
			r.Name = room.Participant2Name
		}
	}

	return r
}

func (s *Service) messageRef(m database.Message, roomExternalId string) types.Message {
	return types.Message{
		Id:        m.Id,
		RoomId:    roomExternalId,
		Sender:    types.User{Id: m.SenderId, Username: m.SenderName},
		Content:   m.Content,
		Timestamp: m.CreatedAt,
	}
}

func (s *Service) account(userId string) (database.Account, error) {
	a, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Account{}, ErrUserNotFound
		}
		return database.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *Service) room(externalId string) (database.Room, error) {
	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Room{}, ErrRoomNotFound
		}
		return database.Room{}, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// members resolves a room's member set: the two embedded participants
// for a private room, the roster for a group room.
func (s *Service) members(room database.Room) ([]types.User, error) {
	if room.Kind == database.RoomKindPrivate {
		return []types.User{
			{Id: room.Participant1Id, Username: room.Participant1Name},
			{Id: room.Participant2Id, Username: room.Participant2Name},
		}, nil
	}

	participants, err := s.db.ListParticipants(room.Id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	return lo.Map(participants, func(p database.Participant, _ int) types.User {
		return types.User{Id: p.UserId, Username: p.Username}
	}), nil
}

func (s *Service) membersExcept(room database.Room, excludedUserId string) ([]types.User, error) {
	members, err := s.members(room)
	if err != nil {
		return nil, err
	}

	return lo.Filter(members, func(u types.User, _ int) bool {
		return u.Id != excludedUserId
	}), nil
}

func (s *Service) isMember(room database.Room, userId string) bool {
	if room.Kind == database.RoomKindPrivate {
		return room.Participant1Id == userId || room.Participant2Id == userId
	}
	return s.db.ParticipantExists(room.Id, userId)
}

// SendMessage appends a message to a room the sender is a member of and
// fans a notification out to every other member that is currently
// online.
func (s *Service) SendMessage(senderId, roomExternalId, content string) (types.Message, error) {
	sender, err := s.account(senderId)
	if err != nil {
		return types.Message{}, err
	}

	room, err := s.room(roomExternalId)
	if err != nil {
		return types.Message{}, err
	}

	if !s.isMember(room, sender.Id) {
		return types.Message{}, ErrNotAMember
	}

	return s.send(sender, room, content)
}

// SendDirectMessage sends a private message, creating the private room
// on first contact. The pair must be friends.
func (s *Service) SendDirectMessage(senderId, otherUserId, content string) (types.Message, error) {
	sender, err := s.account(senderId)
	if err != nil {
		return types.Message{}, err
	}

	other, err := s.account(otherUserId)
	if err != nil {
		return types.Message{}, err
	}

	if !s.db.FriendshipExists(sender.Id, other.Id) {
		return types.Message{}, ErrNotFriends
	}

	room, err := s.findOrCreatePrivateRoom(sender, other)
	if err != nil {
		return types.Message{}, err
	}

	return s.send(sender, room, content)
}

// findOrCreatePrivateRoom returns the private room for the pair,
// creating it if absent. Creation is atomic on the unordered pair; a
// racer that loses the create retries the lookup and reuses the
// winner's room.
func (s *Service) findOrCreatePrivateRoom(a, b database.Account) (database.Room, error) {
	room, err := s.db.GetPrivateRoom(a.Id, b.Id)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return database.Room{}, fmt.Errorf("get private room: %w", err)
	}

	sid, err := s.newRoomId()
	if err != nil {
		return database.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err = s.db.CreatePrivateRoom(database.CreatePrivateRoomParams{
		ExternalId:       sid,
		Participant1Id:   a.Id,
		Participant1Name: a.Username,
		Participant2Id:   b.Id,
		Participant2Name: b.Username,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateRoom) {
			s.log.Printf("lost private room create race for users %q and %q, reusing existing room", a.Id, b.Id)
			return s.db.GetPrivateRoom(a.Id, b.Id)
		}
		return database.Room{}, fmt.Errorf("create private room: %w", err)
	}

	return room, nil
}

// send is the delivery pipeline: append, record room activity, resolve
// recipients, filter to the online subset, dispatch. The append is the
// durability-critical step; a failed activity update leaves the preview
// stale but never loses the message.
func (s *Service) send(sender database.Account, room database.Room, content string) (types.Message, error) {
	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		RoomId:     room.Id,
		SenderId:   sender.Id,
		SenderName: sender.Username,
		Content:    content,
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}
	s.stats.Incr(stats.MessagesSent)

	preview := sender.Username + ": " + content
	if err := s.db.UpdateRoomOnMessage(room.Id, preview, msg.CreatedAt); err != nil {
		s.log.Printf("update room %q on message: %v", room.ExternalId, err)
	}

	targets, err := s.membersExcept(room, sender.Id)
	if err != nil {
		return types.Message{}, err
	}

	notification := &types.Notification{
		RoomId:     room.ExternalId,
		SenderName: sender.Username,
		Content:    content,
	}

	for _, u := range s.presence.FilterOnline(targets) {
		if err := s.notifier.Deliver(u.Id, notification); err != nil {
			s.log.Printf("deliver notification to user %q: %v", u.Id, err)
			s.stats.Incr(stats.NotificationFailures)
			continue
		}
		s.stats.Incr(stats.NotificationsSent)
	}

	return s.messageRef(msg, room.ExternalId), nil
}

// History returns a room's full message history in insertion order.
func (s *Service) History(userId, roomExternalId string) ([]types.Message, error) {
	room, err := s.room(roomExternalId)
	if err != nil {
		return nil, err
	}

	if !s.isMember(room, userId) {
		return nil, ErrNotAMember
	}

	messages, err := s.db.ListMessages(room.Id, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return lo.Map(messages, func(m database.Message, _ int) types.Message {
		return s.messageRef(m, room.ExternalId)
	}), nil
}

// ListRooms returns every room the user belongs to, most recently
// active first.
func (s *Service) ListRooms(userId string) ([]types.Room, error) {
	rooms, err := s.db.ListRoomsForUser(userId)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	return lo.Map(rooms, func(r database.Room, _ int) types.Room {
		return roomForViewer(r, userId)
	}), nil
}

// Participants returns a room's member set. The caller must be a member.
func (s *Service) Participants(userId, roomExternalId string) ([]types.User, error) {
	room, err := s.room(roomExternalId)
	if err != nil {
		return nil, err
	}

	if !s.isMember(room, userId) {
		return nil, ErrNotAMember
	}

	return s.members(room)
}

// CreateGroupRoom creates a group room with the owner as its first
// roster member.
func (s *Service) CreateGroupRoom(ownerId, name string) (types.Room, error) {
	owner, err := s.account(ownerId)
	if err != nil {
		return types.Room{}, err
	}

	sid, err := s.newRoomId()
	if err != nil {
		return types.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err := s.db.CreateRoom(database.CreateRoomParams{
		ExternalId: sid,
		Name:       name,
	})
	if err != nil {
		return types.Room{}, fmt.Errorf("create room: %w", err)
	}

	if _, err := s.db.AddParticipant(room.Id, owner.Id, owner.Username); err != nil {
		return types.Room{}, fmt.Errorf("add owner to room: %w", err)
	}

	return roomForViewer(room, ownerId), nil
}

// JoinRoom adds the user to a group room's roster. Joining a room the
// user already belongs to is a no-op.
func (s *Service) JoinRoom(userId, roomExternalId string) error {
	user, err := s.account(userId)
	if err != nil {
		return err
	}

	room, err := s.room(roomExternalId)
	if err != nil {
		return err
	}

	if room.Kind != database.RoomKindGroup {
		return ErrNotGroupRoom
	}

	if _, err := s.db.AddParticipant(room.Id, user.Id, user.Username); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}

	return nil
}

// AddFriend records a friendship between two users.
func (s *Service) AddFriend(userId, friendId string) error {
	user, err := s.account(userId)
	if err != nil {
		return err
	}

	friend, err := s.account(friendId)
	if err != nil {
		return err
	}

	if s.db.FriendshipExists(user.Id, friend.Id) {
		return ErrAlreadyFriends
	}

	if _, err := s.db.CreateFriendship(user.Id, friend.Id); err != nil {
		return fmt.Errorf("create friendship: %w", err)
	}

	return nil
}

// Friends lists a user's friends.
func (s *Service) Friends(userId string) ([]types.User, error) {
	friends, err := s.db.ListFriends(userId)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	return lo.Map(friends, func(a database.Account, _ int) types.User {
		return userRef(a)
	}), nil
}

// SearchUser resolves a user reference by id.
func (s *Service) SearchUser(userId string) (types.User, error) {
	a, err := s.account(userId)
	if err != nil {
		return types.User{}, err
	}
	return userRef(a), nil
}
