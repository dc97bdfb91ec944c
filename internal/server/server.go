package server

import (
	"fmt"
	"log"
	"sync"

	"github.com/npezzotti/go-messenger/internal/session"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/types"
)

// ChatServer is the websocket gateway. It owns the set of live client
// connections, keeps the session registry in step with connect and
// disconnect events, and delivers notifications to a user's active
// connections.
type ChatServer struct {
	log         *log.Logger
	sessions    *session.Registry
	stats       stats.StatsProvider
	clients     map[string]*Client
	clientsLock sync.RWMutex
}

func NewChatServer(logger *log.Logger, sessions *session.Registry, su stats.StatsProvider) (*ChatServer, error) {
	su.RegisterMetric(stats.ActiveConnections)
	su.RegisterMetric(stats.OnlineUsers)

	return &ChatServer{
		log:      logger,
		sessions: sessions,
		stats:    su,
		clients:  make(map[string]*Client),
	}, nil
}

// Register adds a client and marks its session online. The client map
// and the session registry are updated connect-side only; delivery
// paths never mutate either.
func (cs *ChatServer) Register(c *Client) {
	cs.log.Printf("adding connection %q for user %q", c.id, c.user.Username)

	cs.clientsLock.Lock()
	cs.clients[c.id] = c
	cs.clientsLock.Unlock()

	if cs.sessions.Register(c.id, c.user.Id) {
		cs.stats.Incr(stats.OnlineUsers)
	}
	cs.stats.Incr(stats.ActiveConnections)
}

// Deregister removes a client and its session. Safe to call more than
// once for the same client.
func (cs *ChatServer) Deregister(c *Client) {
	cs.clientsLock.Lock()
	_, ok := cs.clients[c.id]
	if ok {
		delete(cs.clients, c.id)
	}
	cs.clientsLock.Unlock()

	if !ok {
		return
	}

	cs.log.Printf("removing connection %q for user %q", c.id, c.user.Username)
	if cs.sessions.Unregister(c.id) {
		cs.stats.Decr(stats.OnlineUsers)
	}
	cs.stats.Decr(stats.ActiveConnections)
}

// Deliver queues a notification on every live connection the user
// holds. A user who disconnected since the presence check is not an
// error; a user whose queues are all full is.
func (cs *ChatServer) Deliver(userId string, n *types.Notification) error {
	connIds := cs.sessions.Connections(userId)
	if len(connIds) == 0 {
		return nil
	}

	msg := &ServerMessage{
		Timestamp:    Now(),
		Notification: n,
	}

	var delivered bool
	cs.clientsLock.RLock()
	for _, id := range connIds {
		if c, ok := cs.clients[id]; ok {
			if c.queueMessage(msg) {
				delivered = true
			}
		}
	}
	cs.clientsLock.RUnlock()

	if !delivered {
		return fmt.Errorf("no deliverable connection for user %q", userId)
	}

	return nil
}

// Shutdown stops all client connections.
func (cs *ChatServer) Shutdown() {
	cs.log.Println("shutting down client connections")

	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for _, c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.stopClient()
		cs.Deregister(c)
	}
}
