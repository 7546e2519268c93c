package db

import (
	"strconv"
	"strings"

	"dbgate/internal/env"
)

// Rebind rewrites '?' placeholders for drivers that use numbered ones.
// Question marks inside single-quoted literals are left alone.
func Rebind(d env.Driver, query string) string {
	if d != env.Postgres || !strings.Contains(query, "?") {
		return query
	}

	var (
		b       strings.Builder
		n       int
		inQuote bool
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
