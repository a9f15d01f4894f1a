package models

import (
	"strings"
	"time"
)

// Difficulty is the user-facing difficulty of a word set
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	// DifficultyNormal is a legacy alias still accepted by older clients
	DifficultyNormal Difficulty = "normal"
)

// Tier names a corpus file
type Tier string

const (
	TierCommon   Tier = "common"
	TierUncommon Tier = "uncommon"
	TierRare     Tier = "rare"
)

// ContentTypeWords is the content type recorded for word-memory usage
const ContentTypeWords = "words"

// Word is a single corpus entry
type Word struct {
	Text     string `json:"word"`
	Category string `json:"category"`
	Length   int    `json:"length"`
}

// NormalizeWord lowercases and trims a word for comparisons
func NormalizeWord(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContentUsage records which items were served to a user in one request
type ContentUsage struct {
	ID          int64
	UserID      int64
	ContentType string
	Items       []Word
	UsedAt      time.Time
}

// ExclusionStats describes a user's recent content history
type ExclusionStats struct {
	TotalSessions  int `json:"totalSessions"`
	RecentSessions int `json:"recentSessions"`
	ExcludedCount  int `json:"excludedCount"`
}
