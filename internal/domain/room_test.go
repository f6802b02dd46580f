package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomID_IsOrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"64b7f0c2a1", "64b7f0c2a2"},
		{"Z", "a"},
		{"u-1", "u-10"},
	}

	for _, p := range pairs {
		assert.Equal(t, RoomID(p[0], p[1]), RoomID(p[1], p[0]), "pair %v", p)
	}
}

func TestRoomID_SortsAndJoins(t *testing.T) {
	assert.Equal(t, "alice_bob", RoomID("bob", "alice"))
}

func TestParseRoomID(t *testing.T) {
	a, b, ok := ParseRoomID(RoomID("bob", "alice"))
	require.True(t, ok)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	for _, bad := range []string{"", "alice", "alice_", "_bob", "bob_alice", "a_b_c", "alice_alice"} {
		_, _, ok := ParseRoomID(bad)
		assert.False(t, ok, "room id %q should not parse", bad)
	}
}

func TestRoomHasParticipant(t *testing.T) {
	room := RoomID("alice", "bob")

	assert.True(t, RoomHasParticipant(room, "alice"))
	assert.True(t, RoomHasParticipant(room, "bob"))
	assert.False(t, RoomHasParticipant(room, "mallory"))
	assert.False(t, RoomHasParticipant("garbage", "alice"))
}

func TestValidatePair(t *testing.T) {
	require.NoError(t, ValidatePair("alice", "bob"))

	tests := []struct {
		name string
		a, b string
	}{
		{"empty first", "", "bob"},
		{"blank second", "alice", "   "},
		{"separator in id", "ali_ce", "bob"},
		{"same participant", "alice", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePair(tt.a, tt.b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}
