package service

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// normalizePage приводит limit/offset к допустимым значениям.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// round2 округляет сумму до копеек.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func emitterOrNoop(e events.Emitter) events.Emitter {
	if e == nil {
		return events.NoopEmitter{}
	}
	return e
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e", 'ж': "zh",
	'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o",
	'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "h", 'ц': "ts",
	'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu",
	'я': "ya",
}

// Slugify строит slug из заголовка, транслитерируя кириллицу.
func Slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if t, ok := translit[r]; ok {
			b.WriteString(t)
			continue
		}
		b.WriteRune(r)
	}
	slug := strings.Trim(nonSlugChars.ReplaceAllString(b.String(), "-"), "-")
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	return slug
}

// CountWords считает слова в тексте.
func CountWords(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '-'
	}))
}

func requireText(value, message string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.Validation(message)
	}
	return nil
}

func optionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// notify публикует изменение, если эмиттер задан.
func notify(ctx context.Context, e events.Emitter, userID uuid.UUID, change events.Change) {
	emitterOrNoop(e).Emit(ctx, userID, change)
}
