package models

import (
	"time"

	"github.com/google/uuid"
)

// AudioProject проект аудиостудии.
type AudioProject struct {
	ID              uuid.UUID `db:"id" json:"id"`
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	Name            string    `db:"name" json:"name"`
	BPM             int       `db:"bpm" json:"bpm"`
	SampleRate      int       `db:"sample_rate" json:"sample_rate"`
	DurationSeconds float64   `db:"duration_seconds" json:"duration_seconds"`
	TrackCount      int       `db:"track_count" json:"track_count"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	Tracks []AudioTrack `db:"-" json:"tracks,omitempty"`
}

// AudioTrack дорожка проекта.
type AudioTrack struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ProjectID   uuid.UUID  `db:"project_id" json:"project_id"`
	Name        string     `db:"name" json:"name"`
	FileID      *uuid.UUID `db:"file_id" json:"file_id,omitempty"`
	Volume      float64    `db:"volume" json:"volume"`
	Pan         float64    `db:"pan" json:"pan"`
	Muted       bool       `db:"muted" json:"muted"`
	Solo        bool       `db:"solo" json:"solo"`
	StartOffset float64    `db:"start_offset" json:"start_offset"`
	Position    int        `db:"position" json:"position"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// MixdownPlan набор дорожек, которые войдут в сведение.
type MixdownPlan struct {
	ProjectID  uuid.UUID    `json:"project_id"`
	BPM        int          `json:"bpm"`
	SampleRate int          `json:"sample_rate"`
	SoloActive bool         `json:"solo_active"`
	Tracks     []AudioTrack `json:"tracks"`
	Skipped    int          `json:"skipped"`
}
