package timeutil

import (
	"testing"
	"time"
)

func TestParseCivilAnchorsToOffset(t *testing.T) {
	got, err := ParseCivil("2025-03-01T09:30")
	if err != nil {
		t.Fatalf("ParseCivil: %v", err)
	}
	want := time.Date(2025, 3, 1, 4, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseCivil = %v, want %v", got.UTC(), want)
	}
	if _, off := got.Zone(); off != 19800 {
		t.Errorf("offset = %d, want 19800", off)
	}
}

func TestParseCivilRFC3339(t *testing.T) {
	got, err := ParseCivil("2025-03-01T04:00:00Z")
	if err != nil {
		t.Fatalf("ParseCivil: %v", err)
	}
	if FormatCivil(*got) != "2025-03-01T09:30" {
		t.Errorf("FormatCivil = %q", FormatCivil(*got))
	}
}

func TestParseCivilEmptyAndInvalid(t *testing.T) {
	got, err := ParseCivil("  ")
	if err != nil || got != nil {
		t.Errorf("ParseCivil(blank) = %v, %v; want nil, nil", got, err)
	}
	if _, err := ParseCivil("tomorrow"); err != ErrInvalidTimestamp {
		t.Errorf("ParseCivil(tomorrow) err = %v", err)
	}
}

func TestWindowStatus(t *testing.T) {
	start, _ := ParseCivil("2025-03-01T09:00")
	end, _ := ParseCivil("2025-03-01T11:00")
	w := Window{Start: start, End: end}

	tests := []struct {
		name string
		now  string
		want Status
	}{
		{"before", "2025-03-01T08:59", StatusUpcoming},
		{"at start", "2025-03-01T09:00", StatusOpen},
		{"inside", "2025-03-01T10:15", StatusOpen},
		{"at end", "2025-03-01T11:00", StatusOpen},
		{"after", "2025-03-01T11:01", StatusClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, _ := ParseCivil(tt.now)
			if got := w.Status(*now); got != tt.want {
				t.Errorf("Status(%s) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestWindowStatusComparesInstantsNotWallClocks(t *testing.T) {
	start, _ := ParseCivil("2025-03-01T09:00")
	w := Window{Start: start}

	// 03:29 UTC is 08:59 at +05:30.
	if got := w.Status(time.Date(2025, 3, 1, 3, 29, 0, 0, time.UTC)); got != StatusUpcoming {
		t.Errorf("Status = %s, want upcoming", got)
	}
	if got := w.Status(time.Date(2025, 3, 1, 3, 30, 0, 0, time.UTC)); got != StatusOpen {
		t.Errorf("Status = %s, want open", got)
	}
}

func TestWindowUnbounded(t *testing.T) {
	if !(Window{}).Contains(time.Now()) {
		t.Error("empty window should be open")
	}
}

func TestWindowValid(t *testing.T) {
	a, _ := ParseCivil("2025-03-01T09:00")
	b, _ := ParseCivil("2025-03-01T08:00")
	if (Window{Start: a, End: b}).Valid() {
		t.Error("start after end reported valid")
	}
	if !(Window{Start: b, End: a}).Valid() {
		t.Error("ordered window reported invalid")
	}
}
