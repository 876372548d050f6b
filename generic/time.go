/*
time.go - Minute-of-day arithmetic for hall operating windows

PURPOSE:
  Every timeline in the system is a list of HH:MM ranges inside an
  operating day that may cross midnight (doors at 22:00, last game at
  02:00). All overlap, containment and gap logic is built on one rule:

    a range whose end is <= its start crosses midnight, so 1440 is
    added to the end.

KEY FUNCTIONS:
  ToMinutes:           "HH:MM" -> minutes since midnight (malformed -> 0)
  FormatMinutes:       minutes -> "HH:MM", wraps modulo 1440
  NormalizeTimeRange:  applies the midnight rule
  IsTimeWithinRange:   containment against a possibly midnight-spanning range
  DetectOverlaps:      every intersecting pair, honouring allow_overlap
  DetectGaps:          uncovered stretches of an operating window

MALFORMED INPUT:
  ToMinutes returns 0 for anything that is not a strict 24h HH:MM value.
  Drafts are edited live and are often half filled; the validator reports
  the malformed string separately so nothing is silently accepted at
  publish time.

SEE ALSO:
  - opsschema/validate.go: Overlap and containment checks
  - schedule/slots.go: Per-weekday slot overlap checks
*/
package generic

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// MinutesPerDay is the length of one operating day in minutes.
const MinutesPerDay = 24 * 60

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// IsValidHHMM reports whether s is a strict 24h "HH:MM" value.
func IsValidHHMM(s string) bool {
	return hhmmPattern.MatchString(s)
}

// ToMinutes parses "HH:MM" into minutes since midnight. Malformed input
// yields 0.
func ToMinutes(hhmm string) int {
	m := hhmmPattern.FindStringSubmatch(hhmm)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min
}

// FormatMinutes is the inverse of ToMinutes. Values outside one day wrap.
func FormatMinutes(minutes int) string {
	m := minutes % MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// FormatClock renders "HH:MM" as a 12-hour label ("19:30" -> "7:30 PM").
// Malformed input is returned unchanged.
func FormatClock(hhmm string) string {
	if !IsValidHHMM(hhmm) {
		return hhmm
	}
	total := ToMinutes(hhmm)
	h, m := total/60, total%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, suffix)
}

// =============================================================================
// RANGES
// =============================================================================

// TimeRange is a normalized range in minutes. End may exceed 1440 when
// the range crosses midnight.
type TimeRange struct {
	Start         int  `json:"start"`
	End           int  `json:"end"`
	SpansMidnight bool `json:"spansMidnight"`
}

// Duration returns the length of the range in minutes.
func (r TimeRange) Duration() int { return r.End - r.Start }

// NormalizeTimeRange converts a pair of "HH:MM" values into minutes. When
// end <= start the range is treated as crossing midnight.
func NormalizeTimeRange(start, end string) TimeRange {
	s, e := ToMinutes(start), ToMinutes(end)
	if e <= s {
		return TimeRange{Start: s, End: e + MinutesPerDay, SpansMidnight: true}
	}
	return TimeRange{Start: s, End: e}
}

// IsTimeWithinRange reports whether t falls inside [rangeStart, rangeEnd]
// after normalization. A t earlier than rangeStart is read as the next
// day so that 01:00 sits inside 22:00-02:00.
func IsTimeWithinRange(t, rangeStart, rangeEnd string) bool {
	r := NormalizeTimeRange(rangeStart, rangeEnd)
	v := ToMinutes(t)
	if v < r.Start {
		v += MinutesPerDay
	}
	return v >= r.Start && v <= r.End
}

// OperationalMinutes positions t on the operating day anchored at
// anchor: times before the anchor belong to the following calendar day.
func OperationalMinutes(t, anchor string) int {
	v := ToMinutes(t)
	if v < ToMinutes(anchor) {
		v += MinutesPerDay
	}
	return v
}

// OperationalRange normalizes [start, end] relative to anchor.
func OperationalRange(start, end, anchor string) TimeRange {
	s := OperationalMinutes(start, anchor)
	r := NormalizeTimeRange(start, end)
	return TimeRange{Start: s, End: s + r.Duration(), SpansMidnight: r.SpansMidnight}
}

// =============================================================================
// OVERLAPS
// =============================================================================

// Interval is a labelled minute range used by the overlap sweep.
type Interval struct {
	ID           string
	Start        int
	End          int
	AllowOverlap bool
}

// TimedItem is an HH:MM range as authored in documents.
type TimedItem struct {
	ID           string
	Start        string
	End          string
	AllowOverlap bool
}

// Overlap is one intersecting pair. First starts no later than Second.
type Overlap struct {
	First  Interval
	Second Interval
}

// DetectOverlaps returns every pair of items whose normalized ranges
// intersect, skipping pairs where either side allows overlap.
func DetectOverlaps(items []TimedItem) []Overlap {
	intervals := make([]Interval, len(items))
	for i, it := range items {
		r := NormalizeTimeRange(it.Start, it.End)
		intervals[i] = Interval{ID: it.ID, Start: r.Start, End: r.End, AllowOverlap: it.AllowOverlap}
	}
	return DetectIntervalOverlaps(intervals)
}

// DetectOverlapsFrom is DetectOverlaps with every item positioned on the
// operating day that begins at anchor.
func DetectOverlapsFrom(anchor string, items []TimedItem) []Overlap {
	intervals := make([]Interval, len(items))
	for i, it := range items {
		r := OperationalRange(it.Start, it.End, anchor)
		intervals[i] = Interval{ID: it.ID, Start: r.Start, End: r.End, AllowOverlap: it.AllowOverlap}
	}
	return DetectIntervalOverlaps(intervals)
}

// DetectIntervalOverlaps sweeps intervals sorted by start, keeping the set
// of intervals still open, and reports each intersecting pair once.
// Touching endpoints do not overlap. The result does not depend on input
// order.
func DetectIntervalOverlaps(intervals []Interval) []Overlap {
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		if sorted[i].End != sorted[j].End {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].ID < sorted[j].ID
	})

	var overlaps []Overlap
	var open []Interval
	for _, cur := range sorted {
		kept := open[:0]
		for _, prev := range open {
			if prev.End > cur.Start {
				kept = append(kept, prev)
			}
		}
		open = kept
		for _, prev := range open {
			if prev.AllowOverlap || cur.AllowOverlap || cur.End <= prev.Start {
				continue
			}
			overlaps = append(overlaps, Overlap{First: prev, Second: cur})
		}
		open = append(open, cur)
	}
	return overlaps
}

// =============================================================================
// GAPS
// =============================================================================

// Gap is an uncovered stretch in operational minutes.
type Gap struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DetectGaps reports stretches of [rangeStart, rangeEnd] not covered by any
// item, including a trailing gap before the range end.
func DetectGaps(items []TimedItem, rangeStart, rangeEnd string) []Gap {
	window := NormalizeTimeRange(rangeStart, rangeEnd)
	ranges := make([]TimeRange, len(items))
	for i, it := range items {
		ranges[i] = OperationalRange(it.Start, it.End, rangeStart)
	}
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	var gaps []Gap
	cursor := window.Start
	for _, r := range ranges {
		if r.Start > cursor && cursor < window.End {
			end := r.Start
			if end > window.End {
				end = window.End
			}
			gaps = append(gaps, Gap{Start: cursor, End: end})
		}
		if r.End > cursor {
			cursor = r.End
		}
	}
	if cursor < window.End {
		gaps = append(gaps, Gap{Start: cursor, End: window.End})
	}
	return gaps
}
