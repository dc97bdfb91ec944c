package chat

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrNotAMember     = errors.New("user is not a member of the room")
	ErrNotFriends     = errors.New("users are not friends")
	ErrAlreadyFriends = errors.New("users are already friends")
	ErrNotGroupRoom   = errors.New("room is not a group room")
)
