package overlay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hopin-service/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "overlay.json"))
}

func TestLoadMissingFileIsEmptyOverlay(t *testing.T) {
	store := newTestStore(t)

	o, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, o.PinnedIDs)
	assert.Empty(t, o.Nicknames)
}

func TestPinPersistsAndDeduplicates(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Pin("u2"))
	require.NoError(t, store.Pin("u3"))
	require.NoError(t, store.Pin("u2"))

	o, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, o.PinnedIDs)

	// A fresh store over the same file sees the persisted state.
	reopened, err := NewStore(store.path).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, reopened.PinnedIDs)
}

func TestUnpinRemovesOnlyTarget(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Pin("u2"))
	require.NoError(t, store.Pin("u3"))

	require.NoError(t, store.Unpin("u2"))

	o, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, o.PinnedIDs)
}

func TestSetNicknameAndClear(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetNickname("u2", "Cap"))
	o, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Cap", o.Nicknames["u2"])

	require.NoError(t, store.SetNickname("u2", ""))
	o, err = store.Load()
	require.NoError(t, err)
	_, exists := o.Nicknames["u2"]
	assert.False(t, exists)
}

func TestAnnotateAppliesNicknamesAndPinsFirst(t *testing.T) {
	list := []models.ConversationSummary{
		{ConversationID: "c1", CounterpartID: "u2", Username: "ana"},
		{ConversationID: "c2", CounterpartID: "u3", Username: "ben"},
		{ConversationID: "c3", CounterpartID: "u4", Username: "cho"},
	}
	o := Overlay{
		PinnedIDs: []string{"u4"},
		Nicknames: map[string]string{"u3": "Benny", "u5": "unused"},
	}

	out := Annotate(list, o)

	require.Len(t, out, 3)
	assert.Equal(t, "u4", out[0].CounterpartID)
	assert.Equal(t, "u2", out[1].CounterpartID)
	assert.Equal(t, "u3", out[2].CounterpartID)
	assert.Equal(t, "Benny", out[2].Username)

	// The input slice is untouched.
	assert.Equal(t, "c1", list[0].ConversationID)
	assert.Equal(t, "ben", list[1].Username)
}

func TestAnnotateKeepsOrderWithinGroups(t *testing.T) {
	list := []models.ConversationSummary{
		{ConversationID: "c1", CounterpartID: "u2"},
		{ConversationID: "c2", CounterpartID: "u3"},
		{ConversationID: "c3", CounterpartID: "u4"},
		{ConversationID: "c4", CounterpartID: "u5"},
	}
	o := Overlay{PinnedIDs: []string{"u5", "u3"}}

	out := Annotate(list, o)

	got := make([]string, len(out))
	for i, s := range out {
		got[i] = s.CounterpartID
	}
	assert.Equal(t, []string{"u3", "u5", "u2", "u4"}, got)
}
