package forecast

import (
	"testing"
	"time"
)

func TestParseHorizon(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30m", 30 * time.Minute, false},
		{"1h", time.Hour, false},
		{"90s", 90 * time.Second, false},
		{"1d", 24 * time.Hour, false},
		{"2d", 48 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"0.5d", 12 * time.Hour, false},
		{" 30m ", 30 * time.Minute, false},
		{"", 0, true},
		{"-10m", 0, true},
		{"0s", 0, true},
		{"tenminutes", 0, true},
		{"xd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHorizon(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseHorizon(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHorizon(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseHorizon(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
