// Package availability parses the free-text availability volunteers enter
// ("Weekdays 09:00 - 17:00", "Mon, Wed, Fri 10:00 - 14:00") into a day set and
// a minute interval, and tests a pickup moment against it.
package availability

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseable is returned for text that does not follow the
// "<days> HH:MM - HH:MM" layout or names no recognizable day.
var ErrUnparseable = errors.New("availability: unparseable")

var timePairRe = regexp.MustCompile(`(\d{2}:\d{2})\s*-\s*(\d{2}:\d{2})`)

// Days is a set of weekdays, one bit per time.Weekday.
type Days uint8

const (
	Sunday Days = 1 << iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday

	Weekdays = Monday | Tuesday | Wednesday | Thursday | Friday
	Weekends = Saturday | Sunday
	AllDays  = Weekdays | Weekends
)

// DayOf returns the single-day set for d.
func DayOf(d time.Weekday) Days { return 1 << uint(d) }

// Has reports whether d is in the set.
func (s Days) Has(d time.Weekday) bool { return s&DayOf(d) != 0 }

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// Availability is the structured form of a volunteer's availability text.
// StartMinutes and EndMinutes count minutes since midnight; both bounds are
// inclusive.
type Availability struct {
	Days         Days
	StartMinutes int
	EndMinutes   int
}

// Parse converts availability text into its structured form. Day tokens that
// cannot be resolved are dropped; if nothing remains the text is unparseable.
func Parse(text string) (Availability, error) {
	m := timePairRe.FindStringSubmatchIndex(text)
	if m == nil {
		return Availability{}, fmt.Errorf("%w: no HH:MM - HH:MM window in %q", ErrUnparseable, text)
	}
	start, err := TimeToMinutes(text[m[2]:m[3]])
	if err != nil {
		return Availability{}, err
	}
	end, err := TimeToMinutes(text[m[4]:m[5]])
	if err != nil {
		return Availability{}, err
	}
	if start > end {
		return Availability{}, fmt.Errorf("%w: window %s ends before it starts", ErrUnparseable, text[m[0]:m[1]])
	}

	days := parseDays(strings.TrimSpace(text[:m[0]]))
	if days == 0 {
		return Availability{}, fmt.Errorf("%w: no recognizable days in %q", ErrUnparseable, text)
	}
	return Availability{Days: days, StartMinutes: start, EndMinutes: end}, nil
}

func parseDays(descriptor string) Days {
	lower := strings.ToLower(descriptor)
	switch {
	case strings.Contains(lower, "all days"):
		return AllDays
	case strings.Contains(lower, "weekdays"):
		return Weekdays
	case strings.Contains(lower, "weekends"):
		return Weekends
	}

	var days Days
	for _, tok := range strings.Split(lower, ",") {
		clean := strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' {
				return r
			}
			return -1
		}, tok)
		if clean == "" {
			continue
		}
		d, ok := dayNames[clean]
		if !ok {
			slog.Debug("availability: dropping unknown day token", "token", strings.TrimSpace(tok))
			continue
		}
		days |= DayOf(d)
	}
	return days
}

// TimeToMinutes converts "HH:MM" to minutes since midnight.
func TimeToMinutes(hhmm string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, fmt.Errorf("%w: bad time %q", ErrUnparseable, hhmm)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrUnparseable, hhmm)
	}
	mins, err := strconv.Atoi(m)
	if err != nil || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrUnparseable, hhmm)
	}
	return hours*60 + mins, nil
}

// MinutesToTime formats minutes since midnight as "HH:MM".
func MinutesToTime(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// Matches reports whether date's weekday is in the set and hhmm lies inside
// the window. An unparseable time never matches.
func (a Availability) Matches(date time.Time, hhmm string) bool {
	mins, err := TimeToMinutes(hhmm)
	if err != nil {
		return false
	}
	return a.MatchesMinutes(date.Weekday(), mins)
}

// MatchesMinutes is Matches with the weekday and minute already resolved.
func (a Availability) MatchesMinutes(day time.Weekday, mins int) bool {
	return a.Days.Has(day) && a.StartMinutes <= mins && mins <= a.EndMinutes
}

var shortNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// String renders the canonical text form, the same layout the registration
// form produces.
func (a Availability) String() string {
	var days string
	switch a.Days {
	case AllDays:
		days = "All days"
	case Weekdays:
		days = "Weekdays"
	case Weekends:
		days = "Weekends"
	default:
		var names []string
		// Monday first, Sunday last.
		for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
			if a.Days.Has(d) {
				names = append(names, shortNames[d])
			}
		}
		days = strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s %s - %s", days, MinutesToTime(a.StartMinutes), MinutesToTime(a.EndMinutes))
}

// DayNames lists the full names of the days in the set, Monday first.
func (s Days) DayNames() []string {
	var out []string
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		if s.Has(d) {
			out = append(out, d.String())
		}
	}
	return out
}
