package core

import "errors"

// Error strings double as the user-visible `error` event payload, so they
// read like messages, not identifiers.
var (
	ErrRoomNotFound     = errors.New("Room not found")
	ErrRoomExists       = errors.New("room code already in use")
	ErrQuestionNotFound = errors.New("Question not found")
	ErrNotPresenter     = errors.New("Only the presenter can do that")
)
