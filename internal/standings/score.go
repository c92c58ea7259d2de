package standings

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var scorePattern = regexp.MustCompile(`^(\d+)-(\d+)$`)

// Score is a final result, Home for the first team of the fixture and Away for the second.
type Score struct {
	Home int
	Away int
}

func (s Score) String() string {
	return fmt.Sprintf("%d-%d", s.Home, s.Away)
}

// ParseScore returns nil for an empty score (unplayed fixture).
func ParseScore(raw string) (*Score, error) {
	if raw == "" {
		return nil, nil
	}
	m := scorePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("%w: score %q must look like 2-1", ErrInvalidInput, raw)
	}
	home, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: score %q: %v", ErrInvalidInput, raw, err)
	}
	away, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: score %q: %v", ErrInvalidInput, raw, err)
	}
	return &Score{Home: home, Away: away}, nil
}

// Day truncates t to its UTC calendar day; ledger rows are keyed by it.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
