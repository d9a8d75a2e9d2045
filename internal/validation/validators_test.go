package validation

import (
	"testing"
	"time"

	"github.com/benvon/capture/internal/models"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims whitespace", input: "  buy milk \n", want: "buy milk"},
		{name: "keeps inner newline and tab", input: "a\n\tb", want: "a\n\tb"},
		{name: "drops control characters", input: "bell\a and \x1b[31mred", want: "bell and [31mred"},
		{name: "whitespace only", input: " \t\r\n ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidatePriority(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"now", "later"} {
		if err := ValidatePriority(value); err != nil {
			t.Errorf("ValidatePriority(%q) error = %v", value, err)
		}
	}
	for _, value := range []string{"", "NOW", "soon"} {
		if err := ValidatePriority(value); err == nil {
			t.Errorf("ValidatePriority(%q) expected error", value)
		}
	}
}

func TestEntities(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name    string
		check   func() error
		wantErr bool
	}{
		{
			name:  "valid project",
			check: func() error { return Project(models.Project{ID: "p", Name: "Inbox", CreatedAt: now}) },
		},
		{
			name:    "project without name",
			check:   func() error { return Project(models.Project{ID: "p"}) },
			wantErr: true,
		},
		{
			name: "valid task",
			check: func() error {
				return Task(models.Task{ID: "t", ProjectID: "p", Text: "x", Priority: models.PriorityLater})
			},
		},
		{
			name:    "task with unknown priority",
			check:   func() error { return Task(models.Task{ID: "t", ProjectID: "p", Text: "x", Priority: "high"}) },
			wantErr: true,
		},
		{
			name: "history item without text",
			check: func() error {
				return HistoryItem(models.HistoryItem{ID: "h", ProjectID: "p", Priority: models.PriorityNow})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.check(); (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
