package domain

import "time"

// ImageRecord is the persisted result of a successful generation.
type ImageRecord struct {
	ID             string    `json:"id"`
	CharacterID    string    `json:"character_id"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negative_prompt"`
	NSFWLevel      NSFWLevel `json:"nsfw_level"`
	Fingerprint    string    `json:"fingerprint"`
	Score          float64   `json:"score"`
	Provider       string    `json:"provider"`
	StorageKey     string    `json:"storage_key"`
	MIME           string    `json:"mime"`
	Bytes          int64     `json:"bytes"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	CreatedAt      time.Time `json:"created_at"`
}
