package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol token letters.
const (
	tokenMove   = 'a'
	tokenRight  = 'd'
	tokenLeft   = 'e'
	tokenMarker = 'i'

	// moveDigits is the number of decimal digits that must follow a move token.
	moveDigits = 4

	// moveSecondsPerUnit is the simulated execution cost per centimetre moved.
	moveSecondsPerUnit = 0.01

	// turnSeconds is the simulated execution cost of a single turn token.
	turnSeconds = 1.0
)

// Result holds the outcome of decoding a wire string.
type Result struct {
	// Executed is the sequence of complete tokens recovered from the wire
	// string, up to (not including) the correlation marker.
	Executed string

	// TrajectoryID is the id carried by the correlation marker,
	// or nil if the wire string had no marker.
	TrajectoryID *int64

	// Duration is the simulated execution time in seconds.
	Duration float64
}

// Encode validates a command string and appends the correlation marker for
// the given trajectory id.
//
// The command string must be non-empty and consist only of complete tokens.
// Returns ErrInvalidCommand otherwise.
func Encode(commands string, trajectoryID int64) (string, error) {
	if err := Validate(commands); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%c%d", commands, tokenMarker, trajectoryID), nil
}

// Validate checks that a command string is non-empty and composed only of
// complete move and turn tokens. The correlation marker is not permitted;
// it is appended by Encode.
func Validate(commands string) error {
	if commands == "" {
		return fmt.Errorf("%w: empty command string", ErrInvalidCommand)
	}

	for i := 0; i < len(commands); {
		switch commands[i] {
		case tokenMove:
			if i+moveDigits >= len(commands) {
				return fmt.Errorf("%w: move token at position %d needs %d digits", ErrInvalidCommand, i, moveDigits)
			}
			digits := commands[i+1 : i+1+moveDigits]
			if !isDigits(digits) {
				return fmt.Errorf("%w: move token at position %d has non-numeric distance %q", ErrInvalidCommand, i, digits)
			}
			i += 1 + moveDigits
		case tokenRight, tokenLeft:
			i++
		default:
			return fmt.Errorf("%w: unexpected character %q at position %d", ErrInvalidCommand, commands[i], i)
		}
	}
	return nil
}

// Decode scans a wire string left to right and reconstructs the executed
// command sequence, the simulated execution time, and the trajectory id
// from the correlation marker.
//
// Decoding is deliberately forgiving: a truncated trailing move token stops
// the scan without error, and unrecognised characters are skipped. This
// mirrors the rover firmware, which executes whatever it can make sense of.
func Decode(wire string) Result {
	var (
		executed strings.Builder
		duration float64
		id       *int64
	)

	i := 0
scan:
	for i < len(wire) {
		switch wire[i] {
		case tokenMove:
			// A move token needs its full distance; a truncated tail is dropped.
			if i+moveDigits >= len(wire) {
				break scan
			}
			digits := wire[i+1 : i+1+moveDigits]
			distance, err := strconv.Atoi(digits)
			if err != nil {
				// Malformed distance: skip the letter and rescan the digits.
				i++
				continue
			}
			executed.WriteByte(tokenMove)
			executed.WriteString(digits)
			duration += float64(distance) * moveSecondsPerUnit
			i += 1 + moveDigits

		case tokenRight, tokenLeft:
			executed.WriteByte(wire[i])
			duration += turnSeconds
			i++

		case tokenMarker:
			// Everything after the marker is the trajectory id.
			if parsed, err := strconv.ParseInt(wire[i+1:], 10, 64); err == nil {
				id = &parsed
			}
			break scan

		default:
			i++
		}
	}

	return Result{
		Executed:     executed.String(),
		TrajectoryID: id,
		Duration:     duration,
	}
}

// isDigits reports whether s consists only of ASCII decimal digits.
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
