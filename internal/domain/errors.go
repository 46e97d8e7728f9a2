package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomNotWaiting = errors.New("room has no waiting participant")
	ErrDuplicateName  = errors.New("room name already exists")
	ErrStoreIO        = errors.New("room store failure")
	ErrMalformedEvent = errors.New("malformed event")
	ErrNotInLobby     = errors.New("connection has not entered the lobby")
)
