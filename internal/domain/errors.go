package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrTransport     = errors.New("transport failure")
	ErrPersistence   = errors.New("persistence failure")
	ErrNotFound      = errors.New("not found")
	ErrAuthorization = errors.New("not authorized")

	ErrEmptyBody           = fmt.Errorf("%w: message body is empty", ErrValidation)
	ErrSelfConversation    = fmt.Errorf("%w: a conversation needs two distinct participants", ErrValidation)
	ErrSenderNotInRoom     = fmt.Errorf("%w: sender is not a participant", ErrValidation)
	ErrConversationMissing = fmt.Errorf("%w: conversation", ErrNotFound)
	ErrParticipantMissing  = fmt.Errorf("%w: participant", ErrNotFound)
)
