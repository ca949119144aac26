package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code does not resolve to a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrQuizStarted is returned on join attempts after the quiz has begun.
	ErrQuizStarted = errors.New("quiz has already started")
	// ErrNotAMember is returned when a participant id is unknown to the room.
	ErrNotAMember = errors.New("participant not found in room")
	// ErrSetNotFound indicates the question set could not be loaded.
	ErrSetNotFound = errors.New("question set not found")
)
