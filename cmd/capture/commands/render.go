package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/capture/internal/coordinator"
	"github.com/benvon/capture/internal/models"
	"github.com/charmbracelet/lipgloss"
)

// palette is the Tokyo Night color set.
var palette = struct {
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color
	Primary       lipgloss.Color
	Success       lipgloss.Color
	Warning       lipgloss.Color
	Error         lipgloss.Color
}{
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),
	Primary:       lipgloss.Color("#7aa2f7"),
	Success:       lipgloss.Color("#9ece6a"),
	Warning:       lipgloss.Color("#e0af68"),
	Error:         lipgloss.Color("#f7768e"),
}

var (
	nowStyle     = lipgloss.NewStyle().Foreground(palette.Error).Bold(true)
	laterStyle   = lipgloss.NewStyle().Foreground(palette.ForegroundDim)
	dimStyle     = lipgloss.NewStyle().Foreground(palette.ForegroundDim)
	activeStyle  = lipgloss.NewStyle().Foreground(palette.Primary).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(palette.Foreground).Bold(true).Underline(true)
	successStyle = lipgloss.NewStyle().Foreground(palette.Success)
	warningStyle = lipgloss.NewStyle().Foreground(palette.Warning)
	errorStyle   = lipgloss.NewStyle().Foreground(palette.Error)
)

// shortIDLength is how much of an id is shown; any unique prefix is accepted as a reference.
const shortIDLength = 8

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

func priorityBadge(p models.Priority) string {
	label := fmt.Sprintf("%-5s", p)
	if p == models.PriorityNow {
		return nowStyle.Render(label)
	}
	return laterStyle.Render(label)
}

// printOutcome writes the acknowledgment of a mutation.
func printOutcome(w io.Writer, out coordinator.Outcome, subject string) {
	var style lipgloss.Style
	switch out.Status {
	case coordinator.StatusSynced:
		style = successStyle
	case coordinator.StatusSavedLocally:
		style = warningStyle
	case coordinator.StatusFailed:
		style = errorStyle
	default:
		style = dimStyle
	}
	line := style.Render(out.String())
	if subject != "" {
		line = fmt.Sprintf("%s %s", line, subject)
	}
	fmt.Fprintln(w, line)
}

func printProjects(w io.Writer, projects []models.Project, activeID string, counts map[string]int) {
	if len(projects) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No projects"))
		return
	}
	for i, p := range projects {
		marker := "  "
		name := p.Name
		if p.ID == activeID {
			marker = activeStyle.Render("* ")
			name = activeStyle.Render(name)
		}
		fmt.Fprintf(w, "%s%2d. %s %s %s\n", marker, i+1, name,
			dimStyle.Render(fmt.Sprintf("(%d open)", counts[p.ID])),
			dimStyle.Render(shortID(p.ID)))
	}
}

func printTasks(w io.Writer, project models.Project, tasks []models.Task) {
	fmt.Fprintln(w, headerStyle.Render(project.Name))
	if len(tasks) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  Nothing to do"))
		return
	}
	for i, t := range tasks {
		fmt.Fprintf(w, "%2d. %s %s %s\n", i+1, priorityBadge(t.Priority), oneLine(t.Text), dimStyle.Render(shortID(t.ID)))
	}
}

func printHistory(w io.Writer, project models.Project, items []models.HistoryItem) {
	fmt.Fprintln(w, headerStyle.Render(project.Name+" - done"))
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  No completed tasks"))
		return
	}
	for i, h := range items {
		fmt.Fprintf(w, "%2d. %s %s %s\n", i+1,
			dimStyle.Render(h.CompletedAt.Local().Format("Jan 02 15:04")),
			oneLine(h.Text),
			dimStyle.Render(shortID(h.ID)))
	}
}

// oneLine collapses multi-line task text for list output.
func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ErrReported marks a failure whose message was already printed as an acknowledgment.
var ErrReported = errors.New("failure already reported")

// acknowledge prints the outcome of a mutation. A rolled back mutation has been reported in
// full and is returned wrapped in ErrReported.
func acknowledge(w io.Writer, out coordinator.Outcome, err error, subject string) error {
	if out.Status != "" {
		printOutcome(w, out, subject)
	}
	if err != nil && out.Status == coordinator.StatusFailed {
		return fmt.Errorf("%w: %w", ErrReported, err)
	}
	return err
}
