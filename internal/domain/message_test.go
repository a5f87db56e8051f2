package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewMessageRejectsMalformedInput(t *testing.T) {
	now := time.Now()

	_, err := NewMessage(1, "alice", "", "hello", now)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewMessage(1, "  ", "room1", "hello", now)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewMessage(1, "alice", "room1", "  \n ", now)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNewMessageTrimsAndStamps(t *testing.T) {
	m, err := NewMessage(7, " alice ", "room1", "  hello  ", time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(7), m.ParticipantID)
	require.Equal(t, "alice", m.Username)
	require.Equal(t, "hello", m.Text)
	require.False(t, m.Timestamp.IsZero())
}

func TestNewObserverMessage(t *testing.T) {
	m, err := NewObserverMessage("room1", "a thought", time.Now())
	require.NoError(t, err)
	require.Equal(t, ObserverID, m.ParticipantID)
	require.Equal(t, ObserverName, m.Username)
}

func TestRosterEntriesPositionalIDs(t *testing.T) {
	entries := RosterEntries([]string{"alice", "bob"})
	require.Equal(t, []RosterEntry{
		{ParticipantID: 1, Username: "alice"},
		{ParticipantID: 2, Username: "bob"},
	}, entries)
	require.Empty(t, RosterEntries(nil))
}
