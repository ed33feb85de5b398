// Package bucket maps timestamps to fixed-width snapshot buckets.
// All functions are pure so replaying from any block reproduces the same assignment.
package bucket

import (
	"fmt"

	"orderbook-lab/internal/domain"
)

// Bucket widths in seconds.
const (
	DefaultSeconds int64 = 5 * 60
	HourSeconds    int64 = 60 * 60
	DaySeconds     int64 = 24 * 60 * 60
)

// Duration returns the bucket width of r in seconds.
// Panics on an unknown resolution.
func Duration(r domain.Resolution) int64 {
	switch r {
	case domain.ResolutionDefault:
		return DefaultSeconds
	case domain.ResolutionHour:
		return HourSeconds
	case domain.ResolutionDay:
		return DaySeconds
	}
	panic(fmt.Sprintf("bucket: unknown resolution %q", r))
}

// Of returns the bucket index and bucket start for a Unix-seconds timestamp.
func Of(ts int64, r domain.Resolution) (index, start int64) {
	d := Duration(r)
	index = floorDiv(ts, d)
	return index, index * d
}

// Preceding returns the count indices immediately before index, ascending.
func Preceding(index int64, count int) []int64 {
	if count <= 0 {
		return nil
	}
	out := make([]int64, count)
	for i := range out {
		out[i] = index - int64(count) + int64(i)
	}
	return out
}

// Closed reports whether the bucket starting at start has ended by now.
func Closed(start int64, r domain.Resolution, now int64) bool {
	_, current := Of(now, r)
	return current > start
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
