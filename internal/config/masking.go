package config

import (
	"fmt"
	"strings"
)

// maskSecret оставляет видимыми первые и последние 4 символа
func maskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) < 8:
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// ValidationError описывает невалидное поле; секретные значения маскируются
type ValidationError struct {
	Field   string
	Message string
	Secret  string
}

func (e *ValidationError) Error() string {
	if e.Secret == "" {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (value: %s)", e.Field, e.Message, maskSecret(e.Secret))
}

func invalidSecret(field, message, secret string) error {
	return &ValidationError{Field: field, Message: message, Secret: secret}
}

// Redacted возвращает копию конфигурации, пригодную для вывода в лог
func (c *Config) Redacted() Config {
	out := *c
	out.Admin.AuthToken = maskSecret(c.Admin.AuthToken)
	out.DeliveryAPI.DisallowedContentTypes = append([]string(nil), c.DeliveryAPI.DisallowedContentTypes...)
	out.Jobs.TempFileCleanup.Directories = append([]string(nil), c.Jobs.TempFileCleanup.Directories...)
	return out
}
