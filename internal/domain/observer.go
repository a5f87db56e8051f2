package domain

// Reserved identity for the automated observer. It never joins as a live
// connection; it only appears as a message author.
const (
	ObserverID   int64 = 0
	ObserverName       = "AI Observer"
)
