package audio

import (
	"math"
	"testing"
)

func TestLevel_Set(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"silence", 0, 0},
		{"mid", 0.5, 0.5},
		{"clamp high", 3, 1},
		{"clamp low", -0.2, 0},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Level
			l.Set(tt.in)
			if got := l.Volume(); got != tt.want {
				t.Errorf("Volume() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_ZeroValueIsSilent(t *testing.T) {
	var l Level
	if l.Volume() != 0 {
		t.Errorf("zero Level Volume() = %v, want 0", l.Volume())
	}
}

func TestLevel_SetFromPayload(t *testing.T) {
	var l Level

	if err := l.SetFromPayload([]byte(" 0.25\n")); err != nil {
		t.Fatalf("SetFromPayload() error = %v", err)
	}
	if l.Volume() != 0.25 {
		t.Errorf("Volume() = %v, want 0.25", l.Volume())
	}

	if err := l.SetFromPayload([]byte("loud")); err == nil {
		t.Error("SetFromPayload() expected error for non-numeric payload")
	}
	if l.Volume() != 0.25 {
		t.Errorf("Volume() changed after bad payload: %v", l.Volume())
	}
}
