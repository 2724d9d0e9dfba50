package codec

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestEncodeAppendsMarker(t *testing.T) {
	wire, err := Encode("a1000da0001e", 7)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if wire != "a1000da0001ei7" {
		t.Errorf("wire = %q, want %q", wire, "a1000da0001ei7")
	}
}

func TestEncodeRejectsInvalidCommands(t *testing.T) {
	tests := []struct {
		name     string
		commands string
	}{
		{"empty string", ""},
		{"truncated move", "a100"},
		{"bare move letter", "a"},
		{"non-numeric distance", "aXYZWd"},
		{"unknown letter", "a1000z"},
		{"marker not allowed", "a1000i3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.commands, 1); !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("Encode(%q) error = %v, want ErrInvalidCommand", tt.commands, err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	id := func(v int64) *int64 { return &v }

	tests := []struct {
		name         string
		wire         string
		wantExecuted string
		wantID       *int64
		wantDuration float64
	}{
		{
			name:         "full trajectory with marker",
			wire:         "a1000da0001ei7",
			wantExecuted: "a1000da0001e",
			wantID:       id(7),
			wantDuration: 1000*0.01 + 1.0 + 1*0.01 + 1.0,
		},
		{
			name:         "turns only",
			wire:         "dedi42",
			wantExecuted: "ded",
			wantID:       id(42),
			wantDuration: 3.0,
		},
		{
			name:         "no marker",
			wire:         "a0050e",
			wantExecuted: "a0050e",
			wantID:       nil,
			wantDuration: 50*0.01 + 1.0,
		},
		{
			name:         "truncated trailing move dropped",
			wire:         "ea10",
			wantExecuted: "e",
			wantID:       nil,
			wantDuration: 1.0,
		},
		{
			name:         "unknown characters skipped",
			wire:         "x d?a0100e",
			wantExecuted: "da0100e",
			wantID:       nil,
			wantDuration: 1.0 + 100*0.01 + 1.0,
		},
		{
			name:         "characters after marker ignored",
			wire:         "di3a9999",
			wantExecuted: "d",
			wantID:       id(3),
			wantDuration: 1.0,
		},
		{
			name:         "marker with unparsable id",
			wire:         "di",
			wantExecuted: "d",
			wantID:       nil,
			wantDuration: 1.0,
		},
		{
			name:         "empty string",
			wire:         "",
			wantExecuted: "",
			wantID:       nil,
			wantDuration: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.wire)
			if got.Executed != tt.wantExecuted {
				t.Errorf("Executed = %q, want %q", got.Executed, tt.wantExecuted)
			}
			if (got.TrajectoryID == nil) != (tt.wantID == nil) {
				t.Fatalf("TrajectoryID = %v, want %v", got.TrajectoryID, tt.wantID)
			}
			if got.TrajectoryID != nil && *got.TrajectoryID != *tt.wantID {
				t.Errorf("TrajectoryID = %d, want %d", *got.TrajectoryID, *tt.wantID)
			}
			if math.Abs(got.Duration-tt.wantDuration) > 1e-9 {
				t.Errorf("Duration = %v, want %v", got.Duration, tt.wantDuration)
			}
		})
	}
}

// TestRoundTrip verifies that encoding then decoding any valid command
// string recovers the commands and the trajectory id exactly.
func TestRoundTrip(t *testing.T) {
	commands := []string{
		"a0001",
		"d",
		"e",
		"a1000da0001e",
		"dea9999a0000d",
		"a0123a4567",
	}
	ids := []int64{0, 1, 7, 42, 987654321}

	for _, c := range commands {
		for _, trajectoryID := range ids {
			t.Run(fmt.Sprintf("%s_%d", c, trajectoryID), func(t *testing.T) {
				wire, err := Encode(c, trajectoryID)
				if err != nil {
					t.Fatalf("Encode(%q, %d) error: %v", c, trajectoryID, err)
				}
				got := Decode(wire)
				if got.Executed != c {
					t.Errorf("Executed = %q, want %q", got.Executed, c)
				}
				if got.TrajectoryID == nil || *got.TrajectoryID != trajectoryID {
					t.Errorf("TrajectoryID = %v, want %d", got.TrajectoryID, trajectoryID)
				}
			})
		}
	}
}
