package model

import "time"

// MemoryEntry is a durable journal record owned by one client identity.
type MemoryEntry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url,omitempty"`
	MusicURL   string    `json:"music_url,omitempty"`
	MusicTitle string    `json:"music_title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserID     string    `json:"user_id"`
}

// MemoryFields carries the caller-editable part of a MemoryEntry.
type MemoryFields struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	ImageURL   string `json:"image_url,omitempty"`
	MusicURL   string `json:"music_url,omitempty"`
	MusicTitle string `json:"music_title,omitempty"`
}

// EchoEntry is an anonymous, write-once message visible until ExpiresAt.
type EchoEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Visible reports whether the echo can still be read at now.
func (e EchoEntry) Visible(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

const (
	// MaxTitleLength is the title ceiling in characters.
	MaxTitleLength = 100
	// MaxEchoLength is the echo content ceiling in characters.
	MaxEchoLength = 500
	// EchoTTL is how long an echo stays visible after creation.
	EchoTTL = 24 * time.Hour
	// EchoListLimit caps a single echo listing.
	EchoListLimit = 50
)
