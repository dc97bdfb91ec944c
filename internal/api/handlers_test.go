package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/npezzotti/go-messenger/internal/chat"
	"github.com/npezzotti/go-messenger/internal/config"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/npezzotti/go-messenger/internal/session"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/testutil"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestApp(t *testing.T, db database.MessengerRepository) *MessengerApp {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	logger := testutil.TestLogger(t)
	sessions := session.NewRegistry()
	cs, err := server.NewChatServer(logger, sessions, su)
	assert.NoError(t, err, "expected chat server creation to succeed")

	chatService := chat.NewService(logger, db, sessions, cs, su)

	cfg := &config.Config{
		ServerAddr:     "localhost:0",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	return NewMessengerApp(http.NewServeMux(), logger, cs, chatService, db, cfg)
}

func authedRequest(method, target string, body io.Reader, userId string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(WithUserId(req.Context(), userId))
}

func createTestAccount(t *testing.T, db *database.MemMessengerRepository, id, username, email, password string) database.Account {
	hash, err := hashPassword(password)
	assert.NoError(t, err)

	a, err := db.CreateAccount(database.CreateAccountParams{
		Id:           id,
		Username:     username,
		EmailAddress: email,
		PasswordHash: hash,
	})
	assert.NoError(t, err)
	return a
}

func TestHealthCheck(t *testing.T) {
	db := database.NewMemMessengerRepository()
	app := newTestApp(t, db)

	rr := httptest.NewRecorder()
	app.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	mockRepo := &database.MockMessengerRepository{}
	mockRepo.On("Ping").Return(errors.New("connection refused")).Once()
	defer mockRepo.AssertExpectations(t)

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCreateAccountHandler(t *testing.T) {
	tcases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"email":"alice@example.com","username":"alice","password":"s3cret"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing username",
			body:       `{"email":"alice@example.com","password":"s3cret"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       `{"email":"alice@example.com","username":"alice"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, database.NewMemMessengerRepository())

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tc.body))
			app.createAccount(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code, "expected status to match")

			if tc.wantStatus == http.StatusCreated {
				var u types.User
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
				assert.NotEmpty(t, u.Id, "expected a generated account id")
				assert.Equal(t, "alice", u.Username)
				assert.Equal(t, "alice@example.com", u.EmailAddress)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	tcases := []struct {
		name       string
		body       string
		wantStatus int
		wantCookie bool
	}{
		{
			name:       "success",
			body:       `{"email":"alice@example.com","password":"s3cret"}`,
			wantStatus: http.StatusOK,
			wantCookie: true,
		},
		{
			name:       "wrong password",
			body:       `{"email":"alice@example.com","password":"nope"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown email",
			body:       `{"email":"ghost@example.com","password":"s3cret"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing password",
			body:       `{"email":"alice@example.com"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := database.NewMemMessengerRepository()
			createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
			app := newTestApp(t, db)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tc.body))
			app.login(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code, "expected status to match")

			var tokenCookie *http.Cookie
			for _, c := range rr.Result().Cookies() {
				if c.Name == tokenCookieKey {
					tokenCookie = c
				}
			}

			if tc.wantCookie {
				assert.NotNil(t, tokenCookie, "expected a session cookie")
				userId, err := app.extractUserIdFromToken(tokenCookie.Value)
				assert.NoError(t, err, "expected the cookie to carry a valid token")
				assert.Equal(t, "a", userId)
			} else {
				assert.Nil(t, tokenCookie, "expected no session cookie")
			}
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	app := newTestApp(t, database.NewMemMessengerRepository())

	rr := httptest.NewRecorder()
	app.logout(rr, authedRequest(http.MethodGet, "/api/auth/logout", nil, "a"))

	assert.Equal(t, http.StatusNoContent, rr.Code)

	cookies := rr.Result().Cookies()
	assert.Len(t, cookies, 1, "expected the session cookie overwritten")
	assert.Empty(t, cookies[0].Value, "expected the cookie value cleared")
}

func TestSessionHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	app := newTestApp(t, db)

	rr := httptest.NewRecorder()
	app.session(rr, authedRequest(http.MethodGet, "/api/auth/session", nil, "a"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var u types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
	assert.Equal(t, "alice", u.Username)

	// no identity on the context
	rr = httptest.NewRecorder()
	app.session(rr, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// identity points at a deleted account
	rr = httptest.NewRecorder()
	app.session(rr, authedRequest(http.MethodGet, "/api/auth/session", nil, "ghost"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAddFriendHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	createTestAccount(t, db, "b", "bob", "bob@example.com", "s3cret")
	app := newTestApp(t, db)

	rr := httptest.NewRecorder()
	app.addFriend(rr, authedRequest(http.MethodPost, "/api/friends", strings.NewReader(`{"id":"b"}`), "a"))
	assert.Equal(t, http.StatusNoContent, rr.Code, "expected friendship created")

	rr = httptest.NewRecorder()
	app.addFriend(rr, authedRequest(http.MethodPost, "/api/friends", strings.NewReader(`{"id":"b"}`), "a"))
	assert.Equal(t, http.StatusConflict, rr.Code, "expected duplicate friendship rejected")

	rr = httptest.NewRecorder()
	app.addFriend(rr, authedRequest(http.MethodPost, "/api/friends", strings.NewReader(`{"id":"ghost"}`), "a"))
	assert.Equal(t, http.StatusNotFound, rr.Code, "expected unknown friend rejected")

	rr = httptest.NewRecorder()
	app.addFriend(rr, authedRequest(http.MethodPost, "/api/friends", strings.NewReader(`{}`), "a"))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "expected missing id rejected")
}

func TestGetFriendsHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	createTestAccount(t, db, "b", "bob", "bob@example.com", "s3cret")
	_, err := db.CreateFriendship("a", "b")
	assert.NoError(t, err)

	app := newTestApp(t, db)

	rr := httptest.NewRecorder()
	app.getFriends(rr, authedRequest(http.MethodGet, "/api/friends", nil, "a"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var friends []types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&friends))
	assert.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)
}

func TestSearchUserHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	app := newTestApp(t, db)

	rr := httptest.NewRecorder()
	app.searchUser(rr, authedRequest(http.MethodGet, "/api/friends/search?id=a", nil, "b"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var u types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
	assert.Equal(t, "alice", u.Username)

	rr = httptest.NewRecorder()
	app.searchUser(rr, authedRequest(http.MethodGet, "/api/friends/search?id=ghost", nil, "b"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	app.searchUser(rr, authedRequest(http.MethodGet, "/api/friends/search", nil, "b"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateRoomHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	app := newTestApp(t, db)

	rr := httptest.NewRecorder()
	app.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"name":"general"}`), "a"))
	assert.Equal(t, http.StatusCreated, rr.Code)

	var room types.Room
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room))
	assert.NotEmpty(t, room.ExternalId, "expected a generated room id")
	assert.Equal(t, "general", room.Name)
	assert.Equal(t, types.RoomGroup, room.Kind)

	rr = httptest.NewRecorder()
	app.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{}`), "a"))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "expected missing name rejected")

	rr = httptest.NewRecorder()
	app.createRoom(rr, httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"name":"x"}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected anonymous request rejected")
}

func TestJoinRoomHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	createTestAccount(t, db, "b", "bob", "bob@example.com", "s3cret")
	app := newTestApp(t, db)

	room, err := app.chat.CreateGroupRoom("a", "general")
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	app.joinRoom(rr, authedRequest(http.MethodPost, "/api/rooms/join",
		strings.NewReader(`{"room_id":"`+room.ExternalId+`"}`), "b"))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	app.joinRoom(rr, authedRequest(http.MethodPost, "/api/rooms/join",
		strings.NewReader(`{"room_id":"missing"}`), "b"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetUsersRoomsHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	app := newTestApp(t, db)

	_, err := app.chat.CreateGroupRoom("a", "general")
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	app.getUsersRooms(rr, authedRequest(http.MethodGet, "/api/rooms", nil, "a"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var rooms []types.Room
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms))
	assert.Len(t, rooms, 1)
	assert.Equal(t, "general", rooms[0].Name)
}

func TestGetParticipantsHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	app := newTestApp(t, db)

	room, err := app.chat.CreateGroupRoom("a", "general")
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	app.getParticipants(rr, authedRequest(http.MethodGet, "/api/participants?room_id="+room.ExternalId, nil, "a"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var participants []types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&participants))
	assert.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].Username)

	rr = httptest.NewRecorder()
	app.getParticipants(rr, authedRequest(http.MethodGet, "/api/participants", nil, "a"))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "expected missing room_id rejected")
}

func TestSendMessageHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	createTestAccount(t, db, "m", "mallory", "mallory@example.com", "s3cret")
	app := newTestApp(t, db)

	room, err := app.chat.CreateGroupRoom("a", "general")
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	app.sendMessage(rr, authedRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"room_id":"`+room.ExternalId+`","content":"hello"}`), "a"))
	assert.Equal(t, http.StatusCreated, rr.Code)

	var msg types.Message
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, room.ExternalId, msg.RoomId)
	assert.Equal(t, "alice", msg.Sender.Username)

	rr = httptest.NewRecorder()
	app.sendMessage(rr, authedRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"room_id":"`+room.ExternalId+`","content":"hi"}`), "m"))
	assert.Equal(t, http.StatusForbidden, rr.Code, "expected non-member rejected")

	rr = httptest.NewRecorder()
	app.sendMessage(rr, authedRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"room_id":"missing","content":"hi"}`), "a"))
	assert.Equal(t, http.StatusNotFound, rr.Code, "expected unknown room rejected")

	rr = httptest.NewRecorder()
	app.sendMessage(rr, authedRequest(http.MethodPost, "/api/messages",
		strings.NewReader(`{"room_id":"`+room.ExternalId+`"}`), "a"))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "expected empty content rejected")
}

func TestSendDirectMessageHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	createTestAccount(t, db, "b", "bob", "bob@example.com", "s3cret")
	app := newTestApp(t, db)

	rr := httptest.NewRecorder()
	app.sendDirectMessage(rr, authedRequest(http.MethodPost, "/api/messages/direct",
		strings.NewReader(`{"friend_id":"b","content":"hey"}`), "a"))
	assert.Equal(t, http.StatusForbidden, rr.Code, "expected strangers rejected")

	_, err := db.CreateFriendship("a", "b")
	assert.NoError(t, err)

	rr = httptest.NewRecorder()
	app.sendDirectMessage(rr, authedRequest(http.MethodPost, "/api/messages/direct",
		strings.NewReader(`{"friend_id":"b","content":"hey"}`), "a"))
	assert.Equal(t, http.StatusCreated, rr.Code)

	var msg types.Message
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
	assert.Equal(t, "hey", msg.Content)
	assert.NotEmpty(t, msg.RoomId, "expected the private room created on first contact")
}

func TestGetMessagesHandler(t *testing.T) {
	db := database.NewMemMessengerRepository()
	createTestAccount(t, db, "a", "alice", "alice@example.com", "s3cret")
	createTestAccount(t, db, "m", "mallory", "mallory@example.com", "s3cret")
	app := newTestApp(t, db)

	room, err := app.chat.CreateGroupRoom("a", "general")
	assert.NoError(t, err)

	for _, content := range []string{"one", "two"} {
		_, err := app.chat.SendMessage("a", room.ExternalId, content)
		assert.NoError(t, err)
	}

	rr := httptest.NewRecorder()
	app.getMessages(rr, authedRequest(http.MethodGet, "/api/messages?room_id="+room.ExternalId, nil, "a"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var messages []types.Message
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&messages))
	assert.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)

	rr = httptest.NewRecorder()
	app.getMessages(rr, authedRequest(http.MethodGet, "/api/messages?room_id="+room.ExternalId, nil, "m"))
	assert.Equal(t, http.StatusForbidden, rr.Code, "expected non-member rejected")

	rr = httptest.NewRecorder()
	app.getMessages(rr, authedRequest(http.MethodGet, "/api/messages", nil, "a"))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "expected missing room_id rejected")
}
