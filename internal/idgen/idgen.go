// Package idgen выдаёт короткие URL-безопасные идентификаторы на nanoid.
package idgen

import (
	"fmt"
	"regexp"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet набор символов случайной части.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Длины идентификаторов по назначению.
const (
	ShortCodeLength = 7
	KeyPrefixLength = 8
	KeySecretLength = 32
	TokenLength     = 24
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// Generate возвращает случайную строку заданной длины.
func Generate(length int) (string, error) {
	id, err := nanoid.Generate(Alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}

// ShortCode код короткой ссылки.
func ShortCode() (string, error) {
	return Generate(ShortCodeLength)
}

// Token токен для публичных ссылок и приглашений.
func Token() (string, error) {
	return Generate(TokenLength)
}

// ValidAlias проверяет пользовательский алиас короткой ссылки.
func ValidAlias(alias string) bool {
	return aliasPattern.MatchString(alias)
}

// APIKeyPrefix начало всех API ключей.
const APIKeyPrefix = "kz_"

// APIKey выпускает ключ вида kz_<prefix>_<secret> и возвращает его части.
func APIKey() (key, prefix, secret string, err error) {
	if prefix, err = Generate(KeyPrefixLength); err != nil {
		return "", "", "", err
	}
	if secret, err = Generate(KeySecretLength); err != nil {
		return "", "", "", err
	}
	return APIKeyPrefix + prefix + "_" + secret, prefix, secret, nil
}

// ParseAPIKey разбирает ключ на префикс и секрет.
func ParseAPIKey(key string) (prefix, secret string, ok bool) {
	rest, found := strings.CutPrefix(key, APIKeyPrefix)
	if !found {
		return "", "", false
	}
	prefix, secret, found = strings.Cut(rest, "_")
	if !found || len(prefix) != KeyPrefixLength || len(secret) != KeySecretLength {
		return "", "", false
	}
	return prefix, secret, true
}
