package calendar

import (
	"sort"
	"time"
)

// WeekKey identifies an ISO-style week.
type WeekKey struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

func (k WeekKey) less(o WeekKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Week < o.Week
}

// Bucket groups timeline entries sharing a week key.
type Bucket struct {
	Key       WeekKey   `json:"key"`
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	Entries   []Entry   `json:"entries"`
}

// KeyOf computes the week key of a calendar date: the date is moved to the
// Thursday of its Monday-based week and the week number counts from January 1
// of that Thursday's year.
func KeyOf(d time.Time) WeekKey {
	iso := int(d.Weekday())
	if iso == 0 {
		iso = 7
	}
	thursday := addDays(d, 4-iso)
	return WeekKey{
		Year: thursday.Year(),
		Week: (thursday.YearDay() + 6) / 7,
	}
}

// Timeline groups entries by week key. WeekStart is the Sunday on or before
// the earliest contributing date and WeekEnd is six days later. The result is
// sorted by WeekStart, so input order never affects it.
func Timeline(entries []Entry, loc *time.Location) []Bucket {
	loc = location(loc)
	byKey := make(map[WeekKey]*Bucket)
	earliest := make(map[WeekKey]time.Time)

	for _, e := range entries {
		if !e.scheduled() {
			continue
		}
		d := dateOf(*e.Deadline, loc)
		key := KeyOf(d)
		b, ok := byKey[key]
		if !ok {
			b = &Bucket{Key: key}
			byKey[key] = b
			earliest[key] = d
		}
		if d.Before(earliest[key]) {
			earliest[key] = d
		}
		b.Entries = append(b.Entries, e)
	}

	out := make([]Bucket, 0, len(byKey))
	for key, b := range byKey {
		b.WeekStart = sundayOnOrBefore(earliest[key])
		b.WeekEnd = addDays(b.WeekStart, 6)
		sortEntries(b.Entries)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.Before(out[j].WeekStart)
		}
		return out[i].Key.less(out[j].Key)
	})
	return out
}
