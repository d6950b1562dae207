package agent

import (
	"regexp"
	"strconv"
)

var (
	// rankedCount catches "top 20", "first 3", "limit 50".
	rankedCount = regexp.MustCompile(`(?i)\b(?:top|first|last|latest|bottom|limit)\s+(\d{1,6})\b`)
	// askedCount catches "show me 10 customers" and "12 rows"; the number must
	// be followed by a plural noun.
	askedCount = regexp.MustCompile(`(?i)\b(?:show|list|give|get|return|find)(?:\s+me)?\s+(\d{1,6})\s+[a-z]+s\b|\b(\d{1,6})\s+(?:rows|results|records|entries|examples|items)\b`)
)

// requestedRowLimit returns the row cap for a question: the count the user
// asked for, bounded by ceiling, or def when none is stated. Numbers that look
// like years only count after a ranking keyword.
func requestedRowLimit(question string, def, ceiling int) int {
	if m := rankedCount.FindStringSubmatch(question); m != nil {
		return boundedCount(m[1], def, ceiling)
	}
	for _, m := range askedCount.FindAllStringSubmatch(question, -1) {
		count := m[1] + m[2]
		n, err := strconv.Atoi(count)
		if err != nil || isYear(n) {
			continue
		}
		return boundedCount(count, def, ceiling)
	}
	return def
}

func boundedCount(s string, def, ceiling int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, max(ceiling, def))
}

func isYear(n int) bool {
	return n >= 1900 && n <= 2100
}
