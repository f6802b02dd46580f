package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/seeker014/SilentRoom/internal/domain"
)

// IdentityDirectory is an in-memory participant id to nickname table.
type IdentityDirectory struct {
	names map[string]string
	mu    *sync.RWMutex
}

func NewIdentityDirectory(seed map[string]string) *IdentityDirectory {
	names := make(map[string]string, len(seed))
	for id, name := range seed {
		names[id] = name
	}

	return &IdentityDirectory{
		names: names,
		mu:    &sync.RWMutex{},
	}
}

// Register adds or renames a participant.
func (d *IdentityDirectory) Register(participantID, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.names[participantID] = displayName
}

func (d *IdentityDirectory) ResolveDisplayName(ctx context.Context, participantID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.names[participantID]
	if !ok {
		return "", fmt.Errorf("%w %q", domain.ErrParticipantMissing, participantID)
	}
	return name, nil
}
