// Package validation проверки пользовательского ввода, общие для сервисов.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxEmailLength        = 255
	MaxExternalLinkLength = 2048
	MaxNameLength         = 200
)

var (
	emailLocal  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomain = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// NormalizeEmail приводит адрес к нижнему регистру и проверяет формат.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("email обязателен")
	}
	if len(email) > MaxEmailLength {
		return "", fmt.Errorf("email слишком длинный")
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "", fmt.Errorf("некорректный формат email")
	}
	if len(local) == 0 || len(local) > 64 {
		return "", fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if !emailLocal.MatchString(local) {
		return "", fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomain.MatchString(domain) {
		return "", fmt.Errorf("доменная часть email имеет некорректный формат")
	}
	return email, nil
}

// NormalizeLink проверяет абсолютную http(s) ссылку и возвращает её без
// пробелов по краям.
func NormalizeLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if err := ValidateLength("ссылка", link, 1, MaxExternalLinkLength); err != nil {
		return "", err
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("некорректный формат URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("ссылка должна начинаться с http:// или https://")
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("ссылка должна содержать доменное имя")
	}
	return link, nil
}

// ValidateOptionalLink проверяет ссылку, если она задана.
func ValidateOptionalLink(link *string) error {
	if link == nil || strings.TrimSpace(*link) == "" {
		return nil
	}
	_, err := NormalizeLink(*link)
	return err
}
