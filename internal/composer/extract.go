package composer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Extractor pulls task hints out of free-form message text.
type Extractor interface {
	// ExtractDue returns the first date-like instant in text, or nil.
	ExtractDue(text string, loc *time.Location) *time.Time
	// ExtractAction returns an imperative phrase ("review the draft"), or "".
	ExtractAction(text string) string
}

var (
	// MM/DD/YYYY, M/D/YY, with "/" or "-".
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4}|\d{2})\b`)

	// "March 5, 2025", "Mar 5th 2025", "Sept. 12, 2025"
	namedDateRe = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)

	// "2:30pm", "14:05", "9:00 AM"
	timeRe = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm)?\b`)

	actionRe = regexp.MustCompile(`(?i)\b(?:please|kindly)\s+([a-z][^.!?\n]*)`)
)

var monthsByName = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// RegexExtractor is the default Extractor. It is heuristic: the earliest
// date-like substring wins and a time is only applied when a date was found.
type RegexExtractor struct{}

// NewRegexExtractor returns the default extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

func (RegexExtractor) ExtractDue(text string, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.Local
	}

	year, month, day, ok := findDate(text)
	if !ok {
		return nil
	}

	hour, minute := 0, 0
	if h, m, ok := findTime(text); ok {
		hour, minute = h, m
	}

	due := time.Date(year, month, day, hour, minute, 0, 0, loc)
	// Reject overflowed dates such as 02/31/2025.
	if due.Year() != year || due.Month() != month || due.Day() != day {
		return nil
	}
	return &due
}

func (RegexExtractor) ExtractAction(text string) string {
	m := actionRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// findDate returns the earliest numeric or named date in text.
func findDate(text string) (int, time.Month, int, bool) {
	best := -1
	var year, day int
	var month time.Month

	if loc := numericDateRe.FindStringSubmatchIndex(text); loc != nil {
		mm, _ := strconv.Atoi(text[loc[2]:loc[3]])
		dd, _ := strconv.Atoi(text[loc[4]:loc[5]])
		yy := normalizeYear(text[loc[6]:loc[7]])
		if mm >= 1 && mm <= 12 && dd >= 1 && dd <= 31 {
			best, year, month, day = loc[0], yy, time.Month(mm), dd
		}
	}

	if loc := namedDateRe.FindStringSubmatchIndex(text); loc != nil && (best == -1 || loc[0] < best) {
		name := strings.ToLower(text[loc[2]:loc[3]])
		if len(name) > 3 && name != "sept" {
			name = name[:3]
		}
		dd, _ := strconv.Atoi(text[loc[4]:loc[5]])
		yy, _ := strconv.Atoi(text[loc[6]:loc[7]])
		if m, ok := monthsByName[name]; ok && dd >= 1 && dd <= 31 {
			best, year, month, day = loc[0], yy, m, dd
		}
	}

	return year, month, day, best != -1
}

// findTime parses the first H:MM[am|pm] in text into 24-hour values.
func findTime(text string) (int, int, bool) {
	m := timeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func normalizeYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}
