package chat

import "errors"

var (
	// ErrNotMember is a permission failure: the caller does not belong to
	// the room.
	ErrNotMember = errors.New("not a room member")

	ErrRoomNotFound = errors.New("room not found")

	// ErrInvalidRequest covers validation failures on room/member
	// mutations (wrong room type, member cap, bad arguments).
	ErrInvalidRequest = errors.New("invalid request")
)
