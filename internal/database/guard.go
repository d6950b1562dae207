package database

import (
	"fmt"
	"strings"
	"unicode"
)

// mutating keywords are rejected anywhere outside literals and comments, which
// also covers data-modifying CTEs such as WITH d AS (DELETE ...) SELECT ...
// INTO stands in for REPLACE INTO and SELECT ... INTO; bare REPLACE stays
// allowed for the replace() string function.
var mutating = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {},
	"CREATE": {}, "TRUNCATE": {}, "GRANT": {}, "REVOKE": {}, "MERGE": {},
	"ATTACH": {}, "DETACH": {}, "PRAGMA": {}, "VACUUM": {}, "REINDEX": {},
	"COPY": {}, "CALL": {}, "UPSERT": {}, "INTO": {},
}

// Normalize trims whitespace and trailing statement terminators.
func Normalize(query string) string {
	q := strings.TrimSpace(query)
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	return q
}

// CheckReadOnly accepts a single statement whose leading keyword is SELECT or
// WITH and which names no mutating keyword.
func CheckReadOnly(query string) error {
	code := stripLiterals(Normalize(query))
	if strings.Contains(code, ";") {
		return fmt.Errorf("%w: multiple statements", ErrReadOnly)
	}

	words := strings.FieldsFunc(code, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	if len(words) == 0 {
		return fmt.Errorf("%w: empty statement", ErrReadOnly)
	}

	switch lead := strings.ToUpper(words[0]); lead {
	case "SELECT", "WITH":
	default:
		return fmt.Errorf("%w: statement starts with %s", ErrReadOnly, lead)
	}

	for _, w := range words[1:] {
		if _, bad := mutating[strings.ToUpper(w)]; bad {
			return fmt.Errorf("%w: found %s", ErrReadOnly, strings.ToUpper(w))
		}
	}
	return nil
}

// CapRows bounds the rows a query can return. Wrapping keeps any inner LIMIT,
// so the effective bound is the lower of the two.
func CapRows(query string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (\n%s\n) AS capped_result LIMIT %d", Normalize(query), limit)
}

// stripLiterals blanks out string literals, quoted identifiers and comments so
// keyword checks only see SQL code.
func stripLiterals(q string) string {
	var b strings.Builder
	rs := []rune(q)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			i = skipQuoted(rs, i, r)
			b.WriteRune(' ')
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			b.WriteRune(' ')
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			i += 2
			for i < len(rs) && !(rs[i] == '*' && i+1 < len(rs) && rs[i+1] == '/') {
				i++
			}
			i++
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// skipQuoted returns the index of the closing quote; doubled quotes escape.
func skipQuoted(rs []rune, start int, quote rune) int {
	for i := start + 1; i < len(rs); i++ {
		if rs[i] != quote {
			continue
		}
		if i+1 < len(rs) && rs[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return len(rs)
}
