package clipboard

import (
	"errors"
	"testing"
)

func TestMemory_WriteText(t *testing.T) {
	t.Parallel()

	m := &Memory{}
	if err := m.WriteText("first"); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if err := m.WriteText("second"); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if m.Last != "second" {
		t.Errorf("Last = %q, want second", m.Last)
	}

	m.Err = ErrUnsupported
	if err := m.WriteText("third"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("WriteText() error = %v, want ErrUnsupported", err)
	}
	if m.Last != "second" {
		t.Errorf("Last changed on failure: %q", m.Last)
	}
}
