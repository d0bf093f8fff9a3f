package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})(?:T|\b)`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`)
	dayMonthRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?[\s-]+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
	monthDayRe  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[\s-]+(\d{1,2})(?:st|nd|rd|th)?\b`)

	meridiemClockRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::([0-5]\d))?\s*(am|pm)\b`)
	clock24Re       = regexp.MustCompile(`(?:\b|T)([01]?\d|2[0-3]):([0-5]\d)(?::([0-5]\d))?\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// relativePhrases are checked longest first so "day before yesterday" is not
// read as "yesterday".
var relativePhrases = []struct {
	phrase string
	days   int
}{
	{"day before yesterday", -2},
	{"yesterday", -1},
	{"last week", -7},
	{"this morning", 0},
	{"this evening", 0},
	{"tonight", 0},
	{"today", 0},
}

// detectDate scans text for a date in priority order: ISO literal, slash
// date (day first), day-month pair, relative phrase.
func detectDate(text string, now time.Time) (civil.Date, string, bool) {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return d, "date:iso", true
		}
	}

	if m := slashDateRe.FindStringSubmatch(text); m != nil {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		if d, ok := makeDate(year, atoi(m[2]), atoi(m[1])); ok {
			return d, "date:slash", true
		}
	}

	today := civil.DateOf(now)
	if m := dayMonthRe.FindStringSubmatch(text); m != nil {
		if d, ok := dateWithoutYear(today, months[strings.ToLower(m[2][:3])], atoi(m[1])); ok {
			return d, "date:day-month", true
		}
	}
	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		if d, ok := dateWithoutYear(today, months[strings.ToLower(m[1][:3])], atoi(m[2])); ok {
			return d, "date:day-month", true
		}
	}

	lower := strings.ToLower(text)
	for _, rp := range relativePhrases {
		if strings.Contains(lower, rp.phrase) {
			return today.AddDays(rp.days), "date:relative", true
		}
	}

	return civil.Date{}, "", false
}

// dateWithoutYear picks the current year, or the previous one when the date
// would otherwise lie in the future.
func dateWithoutYear(today civil.Date, month time.Month, day int) (civil.Date, bool) {
	d, ok := makeDate(today.Year, int(month), day)
	if !ok {
		return civil.Date{}, false
	}
	if d.After(today) {
		return makeDate(today.Year-1, int(month), day)
	}
	return d, true
}

// detectClock finds a H[:MM]am/pm or HH:MM[:SS] expression. The 24h form may
// follow the T of an ISO datetime.
func detectClock(text string) (civil.Time, bool) {
	if m := meridiemClockRe.FindStringSubmatch(text); m != nil {
		hour := atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute = atoi(m[2])
		}
		if hour >= 1 && hour <= 12 {
			pm := strings.EqualFold(m[3], "pm")
			switch {
			case pm && hour != 12:
				hour += 12
			case !pm && hour == 12:
				hour = 0
			}
			return civil.Time{Hour: hour, Minute: minute}, true
		}
	}

	if m := clock24Re.FindStringSubmatch(text); m != nil {
		ct := civil.Time{Hour: atoi(m[1]), Minute: atoi(m[2])}
		if m[3] != "" {
			ct.Second = atoi(m[3])
		}
		return ct, true
	}

	return civil.Time{}, false
}

func makeDate(year, month, day int) (civil.Date, bool) {
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	return d, d.IsValid()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
