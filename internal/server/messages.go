package server

import (
	"time"

	"github.com/npezzotti/go-messenger/internal/types"
)

// ServerMessage is the frame pushed to connected clients. The only
// server-initiated traffic is message notifications.
type ServerMessage struct {
	Timestamp    time.Time           `json:"timestamp"`
	Notification *types.Notification `json:"notification,omitempty"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
