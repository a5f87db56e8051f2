package domain

// Participant is the identity a live connection holds inside a room.
// IDs are allocated from a process-scoped counter starting at 1 and
// are never reused; id 0 is reserved for the observer.
type Participant struct {
	ID       int64  `json:"participant_id"`
	Username string `json:"username"`
	RoomID   string `json:"room_id"`
}
