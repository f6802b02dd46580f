package domain

import (
	"fmt"
	"strings"
)

// RoomSeparator joins the two participant ids of a room. Participant ids may
// not contain it, which keeps ParseRoomID unambiguous.
const RoomSeparator = "_"

// RoomID returns the live fan-out address shared by a and b. The result does
// not depend on argument order.
func RoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + RoomSeparator + b
}

// ParseRoomID splits a room id into its two participants. ok is false when the
// id does not encode exactly two distinct, non-empty, sorted participants.
func ParseRoomID(roomID string) (a, b string, ok bool) {
	parts := strings.Split(roomID, RoomSeparator)
	if len(parts) != 2 {
		return "", "", false
	}
	a, b = parts[0], parts[1]
	if a == "" || b == "" || a >= b {
		return "", "", false
	}
	return a, b, true
}

// RoomHasParticipant reports whether participantID is one of the two ids
// encoded in roomID.
func RoomHasParticipant(roomID, participantID string) bool {
	a, b, ok := ParseRoomID(roomID)
	if !ok {
		return false
	}
	return participantID == a || participantID == b
}

func ValidateParticipantID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: participant id is required", ErrValidation)
	}
	if strings.Contains(id, RoomSeparator) {
		return fmt.Errorf("%w: participant id %q contains %q", ErrValidation, id, RoomSeparator)
	}
	return nil
}

// ValidatePair checks both ids and rejects a conversation with oneself.
func ValidatePair(a, b string) error {
	if err := ValidateParticipantID(a); err != nil {
		return err
	}
	if err := ValidateParticipantID(b); err != nil {
		return err
	}
	if a == b {
		return ErrSelfConversation
	}
	return nil
}
