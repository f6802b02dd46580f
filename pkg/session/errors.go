package session

import "github.com/seeker014/SilentRoom/internal/domain"

// Errors returned by this package wrap one of these. Match them with
// errors.Is.
var (
	ErrValidation    = domain.ErrValidation
	ErrTransport     = domain.ErrTransport
	ErrPersistence   = domain.ErrPersistence
	ErrNotFound      = domain.ErrNotFound
	ErrAuthorization = domain.ErrAuthorization

	ErrEmptyBody = domain.ErrEmptyBody
)

// RoomID returns the live room shared by participants a and b.
func RoomID(a, b string) string {
	return domain.RoomID(a, b)
}
