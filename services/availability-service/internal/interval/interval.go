package interval

import (
	"sort"
	"time"
)

// Span is a half-open interval [Start, End) of absolute instants.
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) IsZero() bool {
	return s.Start.IsZero() && s.End.IsZero()
}

func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether two half-open spans intersect.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Normalize sorts spans by start, merges overlapping or touching spans and
// drops empty ones. The result is minimal, sorted and non-overlapping.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(spans []Span) []Span {
	cleaned := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.End.After(s.Start) {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	sort.Slice(cleaned, func(i, j int) bool {
		if cleaned[i].Start.Equal(cleaned[j].Start) {
			return cleaned[i].End.Before(cleaned[j].End)
		}
		return cleaned[i].Start.Before(cleaned[j].Start)
	})

	merged := cleaned[:1]
	for _, cur := range cleaned[1:] {
		last := &merged[len(merged)-1]
		// Touching spans (last.End == cur.Start) merge into one.
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Subtract returns the portion of free not covered by busy. Both inputs are
// normalized first; the output is normalized and never extends outside free.
func Subtract(free, busy []Span) []Span {
	free = Normalize(free)
	busy = Normalize(busy)
	if len(free) == 0 {
		return nil
	}
	if len(busy) == 0 {
		return free
	}

	var out []Span
	bi := 0
	for _, f := range free {
		cursor := f.Start
		// Skip busy spans that end at or before this free span.
		for bi < len(busy) && !busy[bi].End.After(cursor) {
			bi++
		}
		for i := bi; i < len(busy) && busy[i].Start.Before(f.End); i++ {
			b := busy[i]
			if b.Start.After(cursor) {
				out = append(out, Span{Start: cursor, End: b.Start})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
			if !cursor.Before(f.End) {
				break
			}
		}
		if cursor.Before(f.End) {
			out = append(out, Span{Start: cursor, End: f.End})
		}
	}
	return out
}

// Clip truncates spans to [from, to) and drops what falls outside.
func Clip(spans []Span, from, to time.Time) []Span {
	if !to.After(from) {
		return nil
	}
	var out []Span
	for _, s := range spans {
		start := s.Start
		end := s.End
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if end.After(start) {
			out = append(out, Span{Start: start, End: end})
		}
	}
	return out
}
