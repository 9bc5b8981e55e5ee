package persistence

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is a newsletter signup. Email is the natural key; resubscribing
// updates the row instead of duplicating it.
type Subscriber struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Source    string    `json:"source"`
	MagnetID  string    `json:"magnetId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileAnswer stores one progressive-profiling answer per (email, question).
type ProfileAnswer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"not null;uniqueIndex:idx_profile_email_question" json:"email"`
	Question  string    `gorm:"not null;uniqueIndex:idx_profile_email_question" json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnalyticsEvent is a first-party pageview/interaction record. IDs are
// snowflakes so inserts stay roughly time-ordered.
type AnalyticsEvent struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Event      string    `gorm:"index;not null" json:"event"`
	Path       string    `json:"path"`
	Properties string    `json:"properties"` // raw JSON from the client
	ClientIP   string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}
