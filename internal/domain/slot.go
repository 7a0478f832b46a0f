package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Weekday is one of the seven weekday labels appointments are tagged with.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// ParseWeekday validates a weekday label, accepting any casing.
func ParseWeekday(s string) (Weekday, error) {
	for _, d := range []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} {
		if strings.EqualFold(s, string(d)) {
			return d, nil
		}
	}
	return "", &ValidationError{Field: "day", Reason: fmt.Sprintf("%q is not a weekday", s)}
}

// WeekdayOf maps a calendar date to its weekday label.
func WeekdayOf(date time.Time) Weekday {
	return Weekday(date.Weekday().String())
}

// DateFormat is the day-granularity form dates are stored and compared in.
const DateFormat = "2006-01-02"

// DateOnly truncates a timestamp to day granularity in UTC. Slot equality
// is time-zone-naive at day granularity, so every date entering the engine
// passes through here once.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SlotKey is the (teacher, calendar date, canonical time) triple conflict
// detection keys on.
type SlotKey struct {
	TeacherID string
	Date      time.Time
	TimeSlot  string
}

// timePattern matches a single clock time such as "3:00 PM", "3 PM" or
// "3pm". Minutes are optional, the meridiem is not.
var timePattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([AaPp])\.?[Mm]\.?$`)

// NormalizeTime canonicalizes heterogeneous time-window text. Input may be
// a single time point or a range ("3:00 PM - 4:00 PM"); for a range the
// start time is taken. Output is always "H:MM AM" or "H:MM PM". Slot text
// arrives from several producers with inconsistent formatting; without this
// step conflict detection silently misses true duplicates.
func NormalizeTime(text string) (string, error) {
	trimmed := strings.TrimSpace(text)

	// Range form: keep everything before the first dash.
	if i := strings.IndexAny(trimmed, "-–"); i >= 0 {
		trimmed = strings.TrimSpace(trimmed[:i])
	}

	m := timePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", &InvalidTimeError{Input: text}
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return "", &InvalidTimeError{Input: text}
	}

	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return "", &InvalidTimeError{Input: text}
		}
	}

	meridiem := "AM"
	if m[3] == "p" || m[3] == "P" {
		meridiem = "PM"
	}

	return fmt.Sprintf("%d:%02d %s", hour, minute, meridiem), nil
}
