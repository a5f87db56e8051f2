package domain

import "errors"

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotJoined        = errors.New("participant not joined to the room")
	ErrRoomNotFound     = errors.New("room not found")
	ErrTemplateNotFound = errors.New("template not found")
)
