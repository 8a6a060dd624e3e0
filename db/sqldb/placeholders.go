package sqldb

import (
	"fmt"
	"strconv"
	"strings"
)

var PlaceholderPrefixForDBType = map[string]byte{
	"mysql":  '?',
	"pgsql":  '$',
	"mssql":  '@',
	"oracle": ':',
	"sqlite": 0, // NOTE: sqlite supports all of them
}

// anonymous reports whether the dialect uses bare `?` without numbering.
func anonymous(prefix byte) bool {
	return prefix == '?' || prefix == 0
}

// ReplaceStaticPlaceholders numbers every static `?` with prefix ($1, $2, ...).
// Dynamic `??` and anything inside quotes, quoted identifiers or comments are left as-is.
func ReplaceStaticPlaceholders(sql string, prefix byte) string {
	if anonymous(prefix) {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	cnt := 1
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if end := skipLiteral(sql, i); end > i {
			b.WriteString(sql[i:end])
			i = end - 1
			continue
		}
		if c != '?' {
			b.WriteByte(c)
			continue
		}
		// Do Not Touch Dynamic Placeholders '??'
		if i+1 < len(sql) && sql[i+1] == '?' {
			b.WriteString("??")
			i++
			continue
		}
		b.WriteByte(prefix)
		b.WriteString(strconv.Itoa(cnt))
		cnt++
	}
	return b.String()
}

// skipLiteral returns the index just past a quoted literal or comment starting at i,
// or i when none starts there. An unterminated one runs to the end of sql.
func skipLiteral(sql string, i int) int {
	switch c := sql[i]; {
	case c == '\'' || c == '"' || c == '`':
		for j := i + 1; j < len(sql); j++ {
			if sql[j] != c {
				continue
			}
			if j+1 < len(sql) && sql[j+1] == c { // doubled quote escape
				j++
				continue
			}
			return j + 1
		}
		return len(sql)
	case c == '-' && strings.HasPrefix(sql[i:], "--"):
		if j := strings.IndexByte(sql[i:], '\n'); j >= 0 {
			return i + j + 1
		}
		return len(sql)
	case c == '/' && strings.HasPrefix(sql[i:], "/*"):
		if j := strings.Index(sql[i+2:], "*/"); j >= 0 {
			return i + 2 + j + 2
		}
		return len(sql)
	}
	return i
}

// Placeholders lists the placeholders of sql in text order: false for a static `?`,
// true for a dynamic `??`. Quotes, quoted identifiers and comments are skipped.
func Placeholders(sql string) []bool {
	var marks []bool
	for i := 0; i < len(sql); i++ {
		if end := skipLiteral(sql, i); end > i {
			i = end - 1
			continue
		}
		if sql[i] != '?' {
			continue
		}
		dynamic := i+1 < len(sql) && sql[i+1] == '?'
		if dynamic {
			i++
		}
		marks = append(marks, dynamic)
	}
	return marks
}

// ExpandDynamicPlaceholders replaces each `??` with counts[k] placeholders joined by ", ".
// Numbered dialects continue from start. counts must match the number of `??` exactly.
// Quotes, quoted identifiers and comments are left as-is.
func ExpandDynamicPlaceholders(sql string, prefix byte, counts []int, start int) (string, error) {
	const symbol = "??"
	var b strings.Builder
	b.Grow(len(sql) + 16*len(counts))

	countIndex := 0
	ord := start
	for i := 0; i < len(sql); i++ {
		if end := skipLiteral(sql, i); end > i {
			b.WriteString(sql[i:end])
			i = end - 1
			continue
		}
		if !strings.HasPrefix(sql[i:], symbol) {
			b.WriteByte(sql[i])
			continue
		}
		i++

		if countIndex >= len(counts) {
			return "", fmt.Errorf("not enough counts for %q", symbol)
		}
		n := counts[countIndex]
		countIndex++

		for k := range n {
			if k > 0 {
				b.WriteString(", ")
			}
			if anonymous(prefix) {
				b.WriteByte('?')
				continue
			}
			b.WriteByte(prefix)
			b.WriteString(strconv.Itoa(ord))
			ord++
		}
	}
	if countIndex < len(counts) {
		return "", fmt.Errorf("too many counts for %q", symbol)
	}
	return b.String(), nil
}
