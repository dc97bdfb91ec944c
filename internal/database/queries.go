package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func (db *PgMessengerRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (id, username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, username, email, created_at, updated_at",
		params.Id,
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgMessengerRepository) GetAccountById(accountId string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgMessengerRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgMessengerRepository) CreateFriendship(userId, friendId string) (Friendship, error) {
	res := db.conn.QueryRow(
		"INSERT INTO friendships (user_id, friend_id, created_at) "+
			"VALUES ($1, $2, $3) RETURNING id, user_id, friend_id, created_at",
		userId,
		friendId,
		time.Now().UTC(),
	)

	var f Friendship
	err := res.Scan(
		&f.Id,
		&f.UserId,
		&f.FriendId,
		&f.CreatedAt,
	)

	return f, err
}

func (db *PgMessengerRepository) FriendshipExists(userId, friendId string) bool {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM friendships "+
			"WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1))",
		userId,
		friendId,
	)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false
	}

	return exists
}

func (db *PgMessengerRepository) ListFriends(userId string) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.email, a.created_at, a.updated_at FROM accounts a "+
			"JOIN friendships f ON a.id = CASE WHEN f.user_id = $1 THEN f.friend_id ELSE f.user_id END "+
			"WHERE f.user_id = $1 OR f.friend_id = $1",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.Id,
			&a.Username,
			&a.EmailAddress,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		friends = append(friends, a)
	}

	return friends, rows.Err()
}

const roomColumns = "id, external_id, kind, name, participant1_id, participant1_name, " +
	"participant2_id, participant2_name, last_message, last_modified, created_at"

func scanRoom(row *sql.Row) (Room, error) {
	var r Room
	err := row.Scan(
		&r.Id,
		&r.ExternalId,
		&r.Kind,
		&r.Name,
		&r.Participant1Id,
		&r.Participant1Name,
		&r.Participant2Id,
		&r.Participant2Name,
		&r.LastMessage,
		&r.LastModified,
		&r.CreatedAt,
	)
	return r, err
}

func (db *PgMessengerRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	row := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, kind, name, last_modified, created_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING "+roomColumns,
		params.ExternalId,
		RoomKindGroup,
		params.Name,
		time.Now().UTC(),
	)

	return scanRoom(row)
}

func (db *PgMessengerRepository) CreatePrivateRoom(params CreatePrivateRoomParams) (Room, error) {
	row := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, kind, name, participant1_id, participant1_name, "+
			"participant2_id, participant2_name, last_modified, created_at) "+
			"VALUES ($1, $2, '', $3, $4, $5, $6, $7, $7) RETURNING "+roomColumns,
		params.ExternalId,
		RoomKindPrivate,
		params.Participant1Id,
		params.Participant1Name,
		params.Participant2Id,
		params.Participant2Name,
		time.Now().UTC(),
	)

	room, err := scanRoom(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Room{}, ErrDuplicateRoom
		}
		return Room{}, err
	}

	return room, nil
}

func (db *PgMessengerRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	return scanRoom(row)
}

// GetPrivateRoom matches the pair in both orderings since existing rows
// may have been written with either participant assignment.
func (db *PgMessengerRepository) GetPrivateRoom(userAId, userBId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms WHERE kind = $1 AND "+
			"((participant1_id = $2 AND participant2_id = $3) OR "+
			"(participant1_id = $3 AND participant2_id = $2)) LIMIT 1",
		RoomKindPrivate,
		userAId,
		userBId,
	)

	return scanRoom(row)
}

func (db *PgMessengerRepository) ListRoomsForUser(userId string) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT "+roomColumns+" FROM rooms WHERE "+
			"(kind = $1 AND (participant1_id = $2 OR participant2_id = $2)) "+
			"OR id IN (SELECT room_id FROM participants WHERE user_id = $2) "+
			"ORDER BY last_modified DESC",
		RoomKindPrivate,
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(
			&r.Id,
			&r.ExternalId,
			&r.Kind,
			&r.Name,
			&r.Participant1Id,
			&r.Participant1Name,
			&r.Participant2Id,
			&r.Participant2Name,
			&r.LastMessage,
			&r.LastModified,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}

	return rooms, rows.Err()
}

func (db *PgMessengerRepository) UpdateRoomOnMessage(roomId int, preview string, at time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE rooms SET last_message = $2, last_modified = $3 WHERE id = $1",
		roomId,
		preview,
		at,
	)

	return err
}

func (db *PgMessengerRepository) AddParticipant(roomId int, userId, username string) (Participant, error) {
	row := db.conn.QueryRow(
		"INSERT INTO participants (room_id, user_id, username, created_at) "+
			"VALUES ($1, $2, $3, $4) ON CONFLICT (room_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id "+
			"RETURNING id, room_id, user_id, username, created_at",
		roomId,
		userId,
		username,
		time.Now().UTC(),
	)

	var p Participant
	err := row.Scan(
		&p.Id,
		&p.RoomId,
		&p.UserId,
		&p.Username,
		&p.CreatedAt,
	)

	return p, err
}

func (db *PgMessengerRepository) ParticipantExists(roomId int, userId string) bool {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM participants WHERE room_id = $1 AND user_id = $2)",
		roomId,
		userId,
	)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false
	}

	return exists
}

func (db *PgMessengerRepository) ListParticipants(roomId int) ([]Participant, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_id, user_id, username, created_at FROM participants "+
			"WHERE room_id = $1 ORDER BY id ASC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(
			&p.Id,
			&p.RoomId,
			&p.UserId,
			&p.Username,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (db *PgMessengerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRow(
		"INSERT INTO messages (room_id, sender_id, sender_name, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, room_id, sender_id, sender_name, content, created_at",
		params.RoomId,
		params.SenderId,
		params.SenderName,
		params.Content,
		time.Now().UTC(),
	)

	var m Message
	err := row.Scan(
		&m.Id,
		&m.RoomId,
		&m.SenderId,
		&m.SenderName,
		&m.Content,
		&m.CreatedAt,
	)

	return m, err
}

// ListMessages returns a room's history ordered by id ascending, which
// is insertion order. A zero after/before/limit disables that bound.
func (db *PgMessengerRepository) ListMessages(roomId int, after, before int64, limit int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_id, sender_id, sender_name, content, created_at FROM messages "+
			"WHERE room_id = $1 AND ($2 = 0 OR id > $2) AND ($3 = 0 OR id < $3) "+
			"ORDER BY id ASC LIMIT NULLIF($4, 0)",
		roomId,
		after,
		before,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.Id,
			&m.RoomId,
			&m.SenderId,
			&m.SenderName,
			&m.Content,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
