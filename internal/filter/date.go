package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date rules use a small DSL instead of regex:
//
//	<Nd              article is newer than N days
//	>Nd              article is older than N days
//	>YYYY-MM-DD      article date is after the given day
//	<YYYY-MM-DD      article date is before the given day
//	YYYY-MM-DD..YYYY-MM-DD  inclusive day range
//
// A missing article date or an unparseable criterion never matches.
var relativeDayPattern = regexp.MustCompile(`^([<>])(\d+)d$`)

const dayLayout = "2006-01-02"

func matchDate(criterion string, date *time.Time, now time.Time) bool {
	if date == nil {
		return false
	}
	criterion = strings.TrimSpace(criterion)

	if m := relativeDayPattern.FindStringSubmatch(criterion); m != nil {
		days, err := strconv.Atoi(m[2])
		if err != nil {
			return false
		}
		cutoff := now.AddDate(0, 0, -days)
		if m[1] == "<" {
			return date.After(cutoff)
		}
		return date.Before(cutoff)
	}

	if from, to, ok := strings.Cut(criterion, ".."); ok {
		start, err1 := time.Parse(dayLayout, strings.TrimSpace(from))
		end, err2 := time.Parse(dayLayout, strings.TrimSpace(to))
		if err1 != nil || err2 != nil {
			return false
		}
		// Inclusive of the whole end day.
		end = end.AddDate(0, 0, 1)
		return !date.Before(start) && date.Before(end)
	}

	if strings.HasPrefix(criterion, ">") || strings.HasPrefix(criterion, "<") {
		day, err := time.Parse(dayLayout, strings.TrimSpace(criterion[1:]))
		if err != nil {
			return false
		}
		if criterion[0] == '>' {
			// Strictly after the named day.
			return !date.Before(day.AddDate(0, 0, 1))
		}
		return date.Before(day)
	}

	return false
}
