package shortener

import (
	"time"
)

// Link is the persisted record binding a short code to its destination.
// Only ClickCount changes after creation.
type Link struct {
	ID         int64
	LongURL    string
	Code       string
	CreatedAt  time.Time
	ClickCount int64
}

// ResolvedLink is what a successful resolution hands back to the caller.
type ResolvedLink struct {
	Code    string
	LongURL string
}

// LinkStats is the read-only view served by the stats endpoint.
type LinkStats struct {
	Code       string
	ClickCount int64
	CreatedAt  time.Time
}
