package models

import (
	"time"

	"github.com/google/uuid"
)

// TranslationKey ключ локализации с исходным текстом.
type TranslationKey struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	Namespace  string    `db:"namespace" json:"namespace"`
	Key        string    `db:"key" json:"key"`
	SourceText string    `db:"source_text" json:"source_text"`
	Context    *string   `db:"context" json:"context,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FullKey возвращает ключ в виде namespace.key.
func (k *TranslationKey) FullKey() string {
	return k.Namespace + "." + k.Key
}

// Translation перевод ключа на конкретную локаль.
type Translation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	KeyID     uuid.UUID `db:"key_id" json:"key_id"`
	Locale    string    `db:"locale" json:"locale"`
	Value     string    `db:"value" json:"value"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LocaleProgress прогресс перевода одной локали.
type LocaleProgress struct {
	Locale     string  `db:"locale" json:"locale"`
	Translated int     `db:"translated" json:"translated"`
	Approved   int     `db:"approved" json:"approved"`
	TotalKeys  int     `db:"-" json:"total_keys"`
	Percent    float64 `db:"-" json:"percent"`
}

// ExportRow строка выгрузки локали.
type ExportRow struct {
	Namespace  string  `db:"namespace"`
	Key        string  `db:"key"`
	SourceText string  `db:"source_text"`
	Value      *string `db:"value"`
}
