package quiz

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrGameStarted      = errors.New("the game has already started")
	ErrNicknameRequired = errors.New("enter a nickname")
	ErrNicknameTaken    = errors.New("that nickname is already taken")
	ErrHostCannotJoin   = errors.New("the host of a room cannot join as a player")
	ErrAlreadyJoined    = errors.New("you are already in this room")
)
