package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAlignToWindow(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 37, 42, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 1, 12, 37, 0, 0, time.UTC), AlignToWindow(ts, time.Minute))
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), AlignToWindow(ts, time.Hour))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), AlignToWindow(ts, 24*time.Hour))
}

func TestWindowsBetween(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		unit  time.Duration
		want  int
	}{
		{"exact windows", base, base.Add(3 * time.Hour), time.Hour, 3},
		{"partial window truncated", base, base.Add(90 * time.Minute), time.Hour, 1},
		{"empty range", base, base, time.Hour, 0},
		{"inverted range", base.Add(time.Hour), base, time.Hour, 0},
		{"zero unit", base, base.Add(time.Hour), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowsBetween(tt.start, tt.end, tt.unit))
		})
	}
}
