package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/benvon/capture/internal/coordinator"
	"github.com/benvon/capture/internal/models"
)

func TestAcknowledge(t *testing.T) {
	t.Parallel()

	remoteErr := errors.New("permission denied")
	rollback := &coordinator.RollbackError{Op: "edit_task", Err: remoteErr}

	tests := []struct {
		name         string
		out          coordinator.Outcome
		err          error
		wantOutput   string
		wantReported bool
		wantErr      error
	}{
		{
			name:       "synced",
			out:        coordinator.Outcome{Op: "add_task", Status: coordinator.StatusSynced},
			wantOutput: "synced",
		},
		{
			name:       "saved locally",
			out:        coordinator.Outcome{Op: "add_task", Status: coordinator.StatusSavedLocally},
			wantOutput: "saved locally",
		},
		{
			name:         "rolled back",
			out:          coordinator.Outcome{Op: "edit_task", Status: coordinator.StatusFailed, Err: rollback},
			err:          rollback,
			wantOutput:   "failed, rolled back",
			wantReported: true,
			wantErr:      remoteErr,
		},
		{
			name:    "rejected before any change",
			out:     coordinator.Outcome{Op: "add_task"},
			err:     coordinator.ErrEmptyText,
			wantErr: coordinator.ErrEmptyText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			err := acknowledge(&buf, tt.out, tt.err, "subject")

			if tt.wantOutput == "" && buf.Len() != 0 {
				t.Errorf("unexpected output %q", buf.String())
			}
			if tt.wantOutput != "" && !strings.Contains(buf.String(), tt.wantOutput) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.wantOutput)
			}
			if errors.Is(err, ErrReported) != tt.wantReported {
				t.Errorf("reported = %v, want %v", errors.Is(err, ErrReported), tt.wantReported)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestPrintTasks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printTasks(&buf, models.Project{Name: "Inbox"}, []models.Task{
		{ID: "0123456789abcdef", Text: "first\nline", Priority: models.PriorityNow},
	})

	out := buf.String()
	for _, want := range []string{"Inbox", "first line", "01234567"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "89abcdef") {
		t.Error("full id printed")
	}
}
