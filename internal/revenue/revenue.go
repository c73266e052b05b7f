// Package revenue converts a contract schedule and hourly rate into weekly
// and monthly revenue figures.
package revenue

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"staffops/internal/modal"
)

const (
	// WeeksPerMonth is the billing convention used for monthly figures.
	WeeksPerMonth = 4.33
	// DefaultWeeklyHours is used when no schedule can be parsed.
	DefaultWeeklyHours = 40.0
)

// Schedule is a weekly coverage pattern.
type Schedule struct {
	WeekdayCount int
	WeekdayHours float64
	WeekendCount int
	WeekendHours float64
}

func (s Schedule) WeeklyHours() float64 {
	return float64(s.WeekdayCount)*s.WeekdayHours + float64(s.WeekendCount)*s.WeekendHours
}

// MonthlyRevenue is round(weeklyHours × rate × 4.33).
func MonthlyRevenue(weeklyHours, rate float64) float64 {
	return math.Round(weeklyHours * rate * WeeksPerMonth)
}

// Reprice recomputes figures from hours already on file. It never looks at
// schedule text, so repeated rate changes leave hours untouched.
func Reprice(weeklyHours, rate float64) modal.RevenueBreakdown {
	return modal.RevenueBreakdown{
		WeeklyHours:    weeklyHours,
		HourlyRate:     rate,
		WeeklyRevenue:  math.Round(weeklyHours*rate*100) / 100,
		MonthlyRevenue: MonthlyRevenue(weeklyHours, rate),
	}
}

// Calculate derives hours from schedule text when it parses and falls back
// to DefaultWeeklyHours otherwise.
func Calculate(scheduleText string, rate float64) modal.RevenueBreakdown {
	hours := DefaultWeeklyHours
	s, ok := ParseSchedule(scheduleText)
	if ok {
		hours = s.WeeklyHours()
	}
	b := Reprice(hours, rate)
	b.FromSchedule = ok
	return b
}

var (
	allWeekRe    = regexp.MustCompile(`\b24\s*/\s*7\b|\baround the clock\b`)
	hoursRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|h)\b`)
	clockRangeRe = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*(?:-|–|to|until)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	nDaysRe      = regexp.MustCompile(`\b([1-7])\s*days?\b`)
	clauseSplit  = regexp.MustCompile(`[,;]|\band\b|\bplus\b`)
)

type dayGroup struct {
	weekdays int
	weekends int
}

var dayPhrases = []struct {
	re    *regexp.Regexp
	group dayGroup
}{
	{regexp.MustCompile(`\b(daily|every day|everyday|all week|seven days)\b`), dayGroup{5, 2}},
	{regexp.MustCompile(`\b(weekdays?|mon(day)?\s*(-|–|to|through|thru)\s*fri(day)?)\b`), dayGroup{5, 0}},
	{regexp.MustCompile(`\b(weekends?|sat(urday)?\s*(-|–|to|through|thru|and|&)\s*sun(day)?)\b`), dayGroup{0, 2}},
	{regexp.MustCompile(`\bsat(urday)?s?\b`), dayGroup{0, 1}},
	{regexp.MustCompile(`\bsun(day)?s?\b`), dayGroup{0, 1}},
}

// ParseSchedule reads coverage descriptions such as "Mon-Fri 8 hours,
// weekends 12 hours", "24/7", "weekdays 6pm-6am" or "5 days 10 hrs".
// A day group without hours inherits the hours of the previous clause.
func ParseSchedule(text string) (Schedule, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Schedule{}, false
	}
	if allWeekRe.MatchString(t) {
		return Schedule{WeekdayCount: 5, WeekdayHours: 24, WeekendCount: 2, WeekendHours: 24}, true
	}

	var (
		s         Schedule
		found     bool
		lastHours float64
		pending   []dayGroup
	)
	assign := func(g dayGroup, h float64) {
		if g.weekdays > 0 {
			s.WeekdayCount = g.weekdays
			s.WeekdayHours = h
		}
		if g.weekends > 0 {
			s.WeekendCount += g.weekends
			if s.WeekendCount > 2 {
				s.WeekendCount = 2
			}
			s.WeekendHours = h
		}
		found = true
	}

	for _, clause := range clauseSplit.Split(t, -1) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		g, hasDays := parseDays(clause)
		h, hasHours := parseHours(clause)
		switch {
		case hasDays && hasHours:
			for _, p := range pending {
				assign(p, h)
			}
			pending = nil
			assign(g, h)
			lastHours = h
		case hasDays:
			pending = append(pending, g)
		case hasHours:
			for _, p := range pending {
				assign(p, h)
			}
			pending = nil
			lastHours = h
		}
	}
	for _, p := range pending {
		if lastHours > 0 {
			assign(p, lastHours)
		}
	}
	if !found && lastHours > 0 {
		// "8 hours a day" with no day words: a standard work week.
		s = Schedule{WeekdayCount: 5, WeekdayHours: lastHours}
		found = true
	}
	if !found || s.WeeklyHours() <= 0 {
		return Schedule{}, false
	}
	return s, true
}

func parseDays(clause string) (dayGroup, bool) {
	if m := nDaysRe.FindStringSubmatch(clause); m != nil {
		n, _ := strconv.Atoi(m[1])
		g := dayGroup{weekdays: n}
		if n > 5 {
			g = dayGroup{weekdays: 5, weekends: n - 5}
		}
		return g, true
	}
	var g dayGroup
	matched := false
	for _, p := range dayPhrases {
		if !p.re.MatchString(clause) {
			continue
		}
		matched = true
		if p.group.weekdays > g.weekdays {
			g.weekdays = p.group.weekdays
		}
		if p.group.weekends > g.weekends {
			g.weekends = p.group.weekends
		}
		if p.group.weekdays == 5 && p.group.weekends == 2 {
			break
		}
	}
	return g, matched
}

func parseHours(clause string) (float64, bool) {
	if m := hoursRe.FindStringSubmatch(clause); m != nil {
		h, err := strconv.ParseFloat(m[1], 64)
		if err == nil && h > 0 && h <= 24 {
			return h, true
		}
	}
	if m := clockRangeRe.FindStringSubmatch(clause); m != nil {
		if m[3] == "" && m[6] == "" && m[2] == "" && m[5] == "" {
			// bare "5-7" is more likely a count than a time range
			return 0, false
		}
		start := toMinutes(m[1], m[2], m[3])
		end := toMinutes(m[4], m[5], m[6])
		if start < 0 || end < 0 {
			return 0, false
		}
		diff := end - start
		if diff <= 0 {
			diff += 24 * 60
		}
		return float64(diff) / 60, true
	}
	return 0, false
}

func toMinutes(hh, mm, meridiem string) int {
	h, err := strconv.Atoi(hh)
	if err != nil || h > 24 {
		return -1
	}
	m := 0
	if mm != "" {
		m, err = strconv.Atoi(mm)
		if err != nil || m > 59 {
			return -1
		}
	}
	switch meridiem {
	case "am":
		if h == 12 {
			h = 0
		}
	case "pm":
		if h != 12 {
			h += 12
		}
	}
	return h*60 + m
}
