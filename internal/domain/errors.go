package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrConversationBusy       = errors.New("conversation has an active run")
	ErrNoAssistantReply       = errors.New("no response from assistant")
	ErrAssistantNotConfigured = errors.New("assistant not configured")
	ErrPersistenceFailed      = errors.New("persistence failed")
)
