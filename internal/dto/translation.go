package dto

// TranslationKeyRequest создание и изменение ключа перевода.
type TranslationKeyRequest struct {
	Namespace  string  `json:"namespace"`
	Key        string  `json:"key" binding:"required,max=200"`
	SourceText string  `json:"source_text" binding:"required"`
	Context    *string `json:"context"`
}

// TranslationRequest значение перевода для локали.
type TranslationRequest struct {
	Locale string `json:"locale" binding:"required"`
	Value  string `json:"value" binding:"required"`
	Status string `json:"status"`
}

// BulkImportRequest массовый импорт переводов локали.
type BulkImportRequest struct {
	Locale    string            `json:"locale" binding:"required"`
	Namespace string            `json:"namespace"`
	Entries   map[string]string `json:"entries" binding:"required"`
}
