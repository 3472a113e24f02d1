package model

// ResultItem is a finalized session outcome kept in the result cache.
// RoomID is the unique key.
type ResultItem struct {
	RoomID      string `json:"roomId"`
	Title       string `json:"title"`
	FinalizedAt int64  `json:"finalizedAt"`
	DurationMin int    `json:"durationMin"`
	Rank        *int   `json:"rank,omitempty"`
	XP          *int   `json:"xp,omitempty"`
	Coins       *int   `json:"coins,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
