// Package clipboard writes task text to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available on this system
var ErrUnsupported = errors.New("clipboard is not supported on this system")

// Writer receives text to place on the clipboard
type Writer interface {
	WriteText(text string) error
}

// System writes to the operating system clipboard
type System struct{}

var _ Writer = System{}

// WriteText places text on the clipboard
func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// Memory keeps the last written text; used when no system clipboard is wanted
type Memory struct {
	Last string
	Err  error
}

var _ Writer = (*Memory)(nil)

// WriteText records text, or returns the configured error
func (m *Memory) WriteText(text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Last = text
	return nil
}
