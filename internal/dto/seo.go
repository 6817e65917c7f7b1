package dto

// SEOAnalyzeRequest разовый анализ текста.
type SEOAnalyzeRequest struct {
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
	Body            string `json:"body" binding:"required"`
	Keyword         string `json:"keyword" binding:"max=100"`
}

// SEOContentRequest анализ сохранённого материала.
type SEOContentRequest struct {
	Keyword string `json:"keyword" binding:"max=100"`
}
