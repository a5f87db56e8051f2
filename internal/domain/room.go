package domain

import "time"

type Room struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	TemplateName string    `db:"template_name"`
	MagicLink    string    `db:"magic_link"`
	Archived     bool      `db:"archived"`
	CreatedAt    time.Time `db:"created_at"`
}

// RosterEntry is one row of a room's persisted roster.
// ParticipantID is positional (index+1 in roster order) and is only
// meaningful for display; live participants carry their own process-scoped id.
type RosterEntry struct {
	ParticipantID int64  `json:"participant_id"`
	Username      string `json:"username"`
}

// RosterEntries renders a username list with positional ids.
func RosterEntries(usernames []string) []RosterEntry {
	out := make([]RosterEntry, 0, len(usernames))
	for i, u := range usernames {
		out = append(out, RosterEntry{ParticipantID: int64(i + 1), Username: u})
	}
	return out
}
