package pipeline

import "testing"

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		km   float64
		want string
	}{
		{0, "-"},
		{-1, "-"},
		{0.5, "500 m"},
		{1, "1.00 km"},
		{42.195, "42.20 km"},
	}
	for _, tt := range tests {
		if got := FormatDistance(tt.km); got != tt.want {
			t.Errorf("FormatDistance(%g) = %q, want %q", tt.km, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes float64
		want    string
	}{
		{0, "-"},
		{0.5, "30s"},
		{5, "5m 0s"},
		{65.5, "1h 5m"},
		{125, "2h 5m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.minutes); got != tt.want {
			t.Errorf("FormatDuration(%g) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestFormatPace(t *testing.T) {
	// 50 minutes over 10 km is 5:00/km.
	if got := FormatPace(50, 10); got != "5:00/km" {
		t.Errorf("got %q, want 5:00/km", got)
	}
	// 200 minutes over 42.2 km is 4:44/km.
	if got := FormatPace(200, 42.2); got != "4:44/km" {
		t.Errorf("got %q, want 4:44/km", got)
	}
	if got := FormatPace(0, 10); got != "-" {
		t.Errorf("got %q, want -", got)
	}
}

func TestFormatSwimPace(t *testing.T) {
	// 20 minutes over 1 km is 2:00/100m.
	if got := FormatSwimPace(20, 1); got != "2:00/100m" {
		t.Errorf("got %q, want 2:00/100m", got)
	}
	if got := FormatSwimPace(10, 0); got != "-" {
		t.Errorf("got %q, want -", got)
	}
}

func TestFormatSpeedAndElevation(t *testing.T) {
	if got := FormatSpeed(31.25); got != "31.2 km/h" {
		t.Errorf("FormatSpeed = %q", got)
	}
	if got := FormatSpeed(0); got != "-" {
		t.Errorf("FormatSpeed(0) = %q", got)
	}
	if got := FormatElevation(1234.4); got != "1234 m" {
		t.Errorf("FormatElevation = %q", got)
	}
	if got := FormatElevation(0); got != "-" {
		t.Errorf("FormatElevation(0) = %q", got)
	}
}
