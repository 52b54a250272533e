package parsers

import (
	"testing"
	"time"
)

func TestEpochTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"empty is zero", "", time.Time{}},
		{"unix seconds", "1700000000", time.Unix(1700000000, 0)},
		{"short unix seconds", "946684800", time.Unix(946684800, 0)},
		{"milliseconds", "1700000000000", time.UnixMilli(1700000000000)},
		{"webkit microseconds", "13344473600000000", time.Unix(1700000000, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := epochTime(tt.input); !got.Equal(tt.want) {
				t.Errorf("epochTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEpochTimeInvalidFallsBackToNow(t *testing.T) {
	before := time.Now().Add(-time.Second)
	for _, input := range []string{"not-a-number", "-5", "12.5"} {
		got := epochTime(input)
		if got.Before(before) || got.After(time.Now().Add(time.Second)) {
			t.Errorf("epochTime(%q) = %v, expected roughly now", input, got)
		}
	}
}
