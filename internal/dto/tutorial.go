package dto

// TutorialRequest создание и изменение урока.
type TutorialRequest struct {
	Title            string  `json:"title" binding:"required,max=200"`
	Slug             string  `json:"slug"`
	Description      *string `json:"description"`
	Category         string  `json:"category"`
	Difficulty       string  `json:"difficulty"`
	EstimatedMinutes int     `json:"estimated_minutes" binding:"gte=0,lte=1440"`
}

// TutorialStepRequest шаг урока.
type TutorialStepRequest struct {
	Title    string  `json:"title" binding:"required"`
	Body     string  `json:"body"`
	VideoURL *string `json:"video_url"`
}
