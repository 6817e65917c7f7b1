package dto

import "github.com/google/uuid"

// AudioProjectRequest создание и изменение аудиопроекта.
type AudioProjectRequest struct {
	Name            string   `json:"name" binding:"required,max=200"`
	BPM             *int     `json:"bpm" binding:"omitempty,min=20,max=300"`
	SampleRate      *int     `json:"sample_rate" binding:"omitempty,oneof=22050 44100 48000 96000"`
	DurationSeconds *float64 `json:"duration_seconds" binding:"omitempty,gte=0"`
}

// AudioTrackRequest добавление и изменение дорожки. Пустые поля не меняются.
type AudioTrackRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=1,max=200"`
	FileID      *uuid.UUID `json:"file_id"`
	Volume      *float64   `json:"volume" binding:"omitempty,gte=0,lte=2"`
	Pan         *float64   `json:"pan" binding:"omitempty,gte=-1,lte=1"`
	Muted       *bool      `json:"muted"`
	Solo        *bool      `json:"solo"`
	StartOffset *float64   `json:"start_offset" binding:"omitempty,gte=0"`
}
