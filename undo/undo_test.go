package undo_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// =============================================================================
// SCOPE KEYS
// =============================================================================

func TestScopes_NeverCollide(t *testing.T) {
	assert.Equal(t, undo.Scope("customer:cust-001"), undo.CustomerScope("cust-001"))
	assert.Equal(t, undo.Scope("master:course"), undo.EntityScope("course"))

	// A customer literally named like an entity still keys differently.
	assert.NotEqual(t, undo.CustomerScope("course"), undo.EntityScope("course"))
}

// =============================================================================
// ENTRY ENCODE / DECODE
// =============================================================================

func TestEntry_RoundTrip(t *testing.T) {
	type snapshot struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	entry, err := undo.NewEntry(undo.EntityScope("staff"), undo.ActionStaffUpdate, snapshot{ID: "st-1", Name: "Sato"})
	require.NoError(t, err)
	assert.Equal(t, undo.ActionStaffUpdate, entry.Action)
	assert.False(t, entry.CreatedAt.IsZero())

	var back snapshot
	require.NoError(t, entry.Decode(&back))
	assert.Equal(t, "st-1", back.ID)
	assert.Equal(t, "Sato", back.Name)
}

func TestEntry_DecodeMismatch(t *testing.T) {
	entry, err := undo.NewEntry(undo.CustomerScope("c1"), undo.ActionChangeCreate, []int{1, 2})
	require.NoError(t, err)

	var wrong struct{ ID string }
	assert.Error(t, entry.Decode(&wrong))
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

func TestErrors_UnwrapToSentinels(t *testing.T) {
	unsupported := &undo.UnsupportedActionError{Action: "mystery_action"}
	assert.True(t, errors.Is(unsupported, undo.ErrUnsupportedAction))
	assert.Contains(t, unsupported.Error(), "mystery_action")

	cause := errors.New("row vanished")
	integrity := &undo.IntegrityError{Action: undo.ActionChangeDelete, Cause: cause}
	assert.True(t, errors.Is(integrity, undo.ErrIntegrity))
	assert.Contains(t, integrity.Error(), "row vanished")
}
