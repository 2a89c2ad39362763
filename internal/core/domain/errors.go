package domain

import "errors"

var (
	ErrStreamNotFound   = errors.New("stream not found")
	ErrStreamNotLive    = errors.New("stream not live")
	ErrPostNotFound     = errors.New("post not found")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityBanned   = errors.New("identity banned")
	ErrNotParticipant   = errors.New("not a conversation participant")
	ErrAccessDenied     = errors.New("access denied")
	ErrInvalidPolicy    = errors.New("invalid access policy")
	ErrSessionClosed    = errors.New("session closed")
)
