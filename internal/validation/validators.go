package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/capture/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("priority", validatePriority); err != nil {
		panic(fmt.Sprintf("failed to register priority validator: %v", err))
	}
}

// validatePriority validates that a string is a valid Priority enum value
func validatePriority(fl validator.FieldLevel) bool {
	return models.Priority(fl.Field().String()).Valid()
}

// SanitizeText trims whitespace and removes control characters except newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidatePriority validates a Priority string value
func ValidatePriority(value string) error {
	if models.Priority(value).Valid() {
		return nil
	}
	return fmt.Errorf("invalid priority: %s (must be 'now' or 'later')", value)
}

// Project validates a project entity.
func Project(p models.Project) error {
	if err := Validate.Struct(p); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	return nil
}

// Task validates a task entity.
func Task(t models.Task) error {
	if err := Validate.Struct(t); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	return nil
}

// HistoryItem validates a history item.
func HistoryItem(h models.HistoryItem) error {
	if err := Validate.Struct(h); err != nil {
		return fmt.Errorf("invalid history item: %w", err)
	}
	return nil
}
