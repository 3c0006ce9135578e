package model

import (
	"math"
	"testing"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 9*60 + 30, false},
		{"16:00", 16 * 60, false},
		{"23:59", 23*60 + 59, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"garbage", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTimeOfDayString(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	if err != nil {
		t.Fatalf("ParseTimeOfDay: %v", err)
	}
	if got := tod.String(); got != "09:05" {
		t.Errorf("String() = %q, want %q", got, "09:05")
	}
	// Wrapped times print as next-day clock time.
	if got := tod.AddDay().String(); got != "09:05" {
		t.Errorf("AddDay().String() = %q, want %q", got, "09:05")
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"A", ProviderRest, false},
		{"a", ProviderRest, false},
		{"rest", ProviderRest, false},
		{"B", ProviderStream, false},
		{"stream", ProviderStream, false},
		{"ws", ProviderStream, false},
		{"C", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProvider(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProvider(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme", "acme"},
		{"Acme Corp", "AcmeCorp"},
		{"br-k/4!", "brk"},
		{"123", ""},
	}

	for _, tt := range tests {
		if got := SanitizeIdentifier(tt.in); got != tt.want {
			t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveCanonical(t *testing.T) {
	table := map[string]string{"ACME": "acme holdings"}

	if got := ResolveCanonical("ACME", table); got != "acmeholdings" {
		t.Errorf("ResolveCanonical with alias = %q, want %q", got, "acmeholdings")
	}
	if got := ResolveCanonical("XYZ", table); got != "XYZ" {
		t.Errorf("ResolveCanonical without alias = %q, want %q", got, "XYZ")
	}
}

func TestNoHistorySentinels(t *testing.T) {
	high, low := NoHistory()
	if !math.IsInf(high, -1) {
		t.Errorf("high = %v, want -Inf", high)
	}
	if !math.IsInf(low, 1) {
		t.Errorf("low = %v, want +Inf", low)
	}

	// The first real sample always sets both extremes.
	s := NewSymbolState(QuoteSample{Symbol: "ABC", Price: 100}, high, low)
	if s.High != 100 || s.Low != 100 {
		t.Errorf("seeded extremes = (%v, %v), want (100, 100)", s.High, s.Low)
	}
}
