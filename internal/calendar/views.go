package calendar

import "time"

// Cell holds the entries due on one calendar date.
type Cell struct {
	Date    time.Time `json:"date"`
	Entries []Entry   `json:"entries"`
}

// MonthView is a Sunday-first month grid.
type MonthView struct {
	Year          int        `json:"year"`
	Month         time.Month `json:"month"`
	LeadingBlanks int        `json:"leading_blanks"`
	Days          []Cell     `json:"days"`
}

// TotalCells is the number of grid cells including the leading blanks.
func (m MonthView) TotalCells() int {
	return m.LeadingBlanks + len(m.Days)
}

type WeekView struct {
	Start time.Time `json:"start"`
	Days  []Cell    `json:"days"`
}

type Slot struct {
	Hour    int     `json:"hour"`
	Entries []Entry `json:"entries"`
}

type DayView struct {
	Date  time.Time `json:"date"`
	Slots []Slot    `json:"slots"`
}

// Month buckets entries by the local date of their deadline; time of day is ignored.
func Month(entries []Entry, year int, month time.Month, loc *time.Location) MonthView {
	loc = location(loc)
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	daysIn := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	view := MonthView{
		Year:          year,
		Month:         month,
		LeadingBlanks: int(first.Weekday()),
		Days:          make([]Cell, daysIn),
	}
	for i := range view.Days {
		view.Days[i] = Cell{Date: addDays(first, i), Entries: []Entry{}}
	}

	for _, e := range entries {
		if !e.scheduled() {
			continue
		}
		d := dateOf(*e.Deadline, loc)
		if d.Year() != year || d.Month() != month {
			continue
		}
		idx := d.Day() - 1
		view.Days[idx].Entries = append(view.Days[idx].Entries, e)
	}
	for i := range view.Days {
		sortEntries(view.Days[i].Entries)
	}
	return view
}

// Week returns the seven days starting at the Sunday on or before ref.
func Week(entries []Entry, ref time.Time, loc *time.Location) WeekView {
	loc = location(loc)
	start := sundayOnOrBefore(dateOf(ref, loc))

	view := WeekView{Start: start, Days: make([]Cell, 7)}
	for i := range view.Days {
		view.Days[i] = Cell{Date: addDays(start, i), Entries: []Entry{}}
	}

	for _, e := range entries {
		if !e.scheduled() {
			continue
		}
		d := dateOf(*e.Deadline, loc)
		for i := range view.Days {
			if view.Days[i].Date.Equal(d) {
				view.Days[i].Entries = append(view.Days[i].Entries, e)
				break
			}
		}
	}
	for i := range view.Days {
		sortEntries(view.Days[i].Entries)
	}
	return view
}

// Day returns 24 hourly slots for the local date of ref.
func Day(entries []Entry, ref time.Time, loc *time.Location) DayView {
	loc = location(loc)
	date := dateOf(ref, loc)

	view := DayView{Date: date, Slots: make([]Slot, 24)}
	for h := range view.Slots {
		view.Slots[h] = Slot{Hour: h, Entries: []Entry{}}
	}

	for _, e := range entries {
		if !e.scheduled() {
			continue
		}
		local := e.Deadline.In(loc)
		if !dateOf(local, loc).Equal(date) {
			continue
		}
		h := local.Hour()
		view.Slots[h].Entries = append(view.Slots[h].Entries, e)
	}
	for h := range view.Slots {
		sortEntries(view.Slots[h].Entries)
	}
	return view
}
