package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Tutorial обучающий урок.
type Tutorial struct {
	ID               uuid.UUID `db:"id" json:"id"`
	AuthorID         uuid.UUID `db:"author_id" json:"author_id"`
	Title            string    `db:"title" json:"title"`
	Slug             string    `db:"slug" json:"slug"`
	Description      *string   `db:"description" json:"description,omitempty"`
	Category         string    `db:"category" json:"category"`
	Difficulty       string    `db:"difficulty" json:"difficulty"`
	EstimatedMinutes int       `db:"estimated_minutes" json:"estimated_minutes"`
	IsPublished      bool      `db:"is_published" json:"is_published"`
	StepCount        int       `db:"step_count" json:"step_count"`
	CompletionCount  int       `db:"completion_count" json:"completion_count"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`

	Steps []TutorialStep `db:"-" json:"steps,omitempty"`
}

// TutorialStep шаг урока.
type TutorialStep struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TutorialID uuid.UUID `db:"tutorial_id" json:"tutorial_id"`
	Position   int       `db:"position" json:"position"`
	Title      string    `db:"title" json:"title"`
	Body       string    `db:"body" json:"body"`
	VideoURL   *string   `db:"video_url" json:"video_url,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TutorialProgress прогресс пользователя по уроку.
type TutorialProgress struct {
	UserID         uuid.UUID      `db:"user_id" json:"user_id"`
	TutorialID     uuid.UUID      `db:"tutorial_id" json:"tutorial_id"`
	CompletedSteps pq.StringArray `db:"completed_steps" json:"completed_steps"`
	Percent        float64        `db:"percent" json:"percent"`
	StartedAt      time.Time      `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// HasStep сообщает, отмечен ли шаг как пройденный.
func (p *TutorialProgress) HasStep(stepID uuid.UUID) bool {
	s := stepID.String()
	for _, id := range p.CompletedSteps {
		if id == s {
			return true
		}
	}
	return false
}
