package domain

import (
	"fmt"
	"strings"
)

// Resolution is the granularity of snapshot bucketing.
type Resolution string

// Resolution constants.
const (
	ResolutionDefault Resolution = "DEFAULT" // finest bucket
	ResolutionHour    Resolution = "HOUR"
	ResolutionDay     Resolution = "DAY"
)

// AllResolutions lists every resolution, finest first.
var AllResolutions = []Resolution{ResolutionDefault, ResolutionHour, ResolutionDay}

// ParseResolution parses a resolution name, case-insensitively.
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(strings.ToUpper(strings.TrimSpace(s))) {
	case ResolutionDefault:
		return ResolutionDefault, nil
	case ResolutionHour:
		return ResolutionHour, nil
	case ResolutionDay:
		return ResolutionDay, nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}
