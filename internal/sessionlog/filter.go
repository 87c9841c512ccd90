package sessionlog

import "time"

// Filter drops intervals whose duration falls inside [Min, Max]. It exists
// to discard spurious intervals that are exactly one break long.
type Filter struct {
	Min time.Duration
	Max time.Duration
}

// NewFilter builds the band center ± tolerance, inclusive.
func NewFilter(center, tolerance time.Duration) *Filter {
	lo := center - tolerance
	if lo < 0 {
		lo = 0
	}
	return &Filter{Min: lo, Max: center + tolerance}
}

// Drops reports whether d is inside the band. The comparison is on whole
// milliseconds, the unit submitted to the log API. A nil filter drops
// nothing.
func (f *Filter) Drops(d time.Duration) bool {
	if f == nil {
		return false
	}
	ms := d.Milliseconds()
	return ms >= f.Min.Milliseconds() && ms <= f.Max.Milliseconds()
}
