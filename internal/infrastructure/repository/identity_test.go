package repository

import (
	"context"
	"testing"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityDirectory(t *testing.T) {
	seed := map[string]string{"alice": "quiet-fox"}
	dir := NewIdentityDirectory(seed)

	// The directory owns its copy of the seed.
	seed["alice"] = "changed"

	name, err := dir.ResolveDisplayName(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "quiet-fox", name)

	_, err = dir.ResolveDisplayName(context.Background(), "bob")
	require.ErrorIs(t, err, domain.ErrNotFound)

	dir.Register("bob", "night-owl")
	name, err = dir.ResolveDisplayName(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "night-owl", name)
}
