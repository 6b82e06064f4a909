package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityStatus is the lifecycle state of an activity.
// Submissions are accepted only while the activity is active.
type ActivityStatus string

const (
	StatusDraft     ActivityStatus = "draft"
	StatusActive    ActivityStatus = "active"
	StatusCompleted ActivityStatus = "completed"
)

// Axis defines one dimension of the mapping grid.
type Axis struct {
	Label string `json:"label"`
	Min   string `json:"min"`
	Max   string `json:"max"`
}

// Activity represents one perspective-mapping exercise.
// MaxEntries is the number of slots a single user may fill; 0 means unlimited.
type Activity struct {
	ID              uuid.UUID      `json:"id"`
	URLName         string         `json:"urlName"`
	Title           string         `json:"title"`
	CreatedBy       uuid.UUID      `json:"createdBy"`
	XAxis           Axis           `json:"xAxis"`
	YAxis           Axis           `json:"yAxis"`
	PromptQuestion  string         `json:"promptQuestion"`
	PromptQuestion2 string         `json:"promptQuestion2,omitempty"`
	CommentPrompt   string         `json:"commentPrompt"`
	MaxEntries      int            `json:"maxEntries"`
	Status          ActivityStatus `json:"status"`
	IsPublic        bool           `json:"isPublic"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// AcceptsSubmissions reports whether ratings/comments/votes may be written.
func (a *Activity) AcceptsSubmissions() bool {
	return a.Status == StatusActive
}

// SlotAllowed reports whether slot is within the activity's entry budget.
// Slots are 1-based; MaxEntries == 0 lifts the cap (solo-tracker mode).
func (a *Activity) SlotAllowed(slot int) bool {
	if slot < 1 {
		return false
	}
	return a.MaxEntries == 0 || slot <= a.MaxEntries
}
